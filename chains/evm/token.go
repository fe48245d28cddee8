package evm

import (
	"context"
	"math/big"
	"strings"

	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// callToken performs a read-only call of an ERC20 method and unpacks its single output.
//
// Parameters:
// - ctx: the context for managing the request.
// - token: the token contract address.
// - method: the ERC20 method name.
// - args: the method arguments.
//
// Returns:
// - interface{}: the first output value.
// - error: an error if packing, calling or unpacking fails.
func (e *evm) callToken(ctx context.Context, token, method string, args ...interface{}) (interface{}, error) {
	if err := contractABIs(); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(token) {
		return nil, errors.Wrapf(commonerrors.ErrTokenNotSupported, "bad token address %q", token)
	}

	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	data, err := erc20.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s data", method)
	}

	tokenAddr := common.HexToAddress(token)
	result, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &tokenAddr,
		Data: data,
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(commonerrors.ErrTransientRPC, "failed to call %s on %s: %v", method, token, err)
	}

	if len(result) == 0 {
		return nil, errors.Errorf("empty result from %s call", method)
	}

	out, err := erc20.Unpack(method, result)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s result", method)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("no outputs from %s call", method)
	}
	return out[0], nil
}

// Decimals returns the decimals of a token. The value is queried once per token and cached,
// concurrent first lookups share one call.
//
// Parameters:
// - ctx: the context for managing the request.
// - token: the token contract address.
//
// Returns:
// - uint8: the number of decimals.
// - error: an error if the call fails.
func (e *evm) Decimals(ctx context.Context, token string) (uint8, error) {
	key := strings.ToLower(token)
	if v, ok := e.decimals.Get(key); ok {
		return v.(uint8), nil
	}

	v, err, _ := e.decimalsGroup.Do(key, func() (interface{}, error) {
		out, err := e.callToken(ctx, token, "decimals")
		if err != nil {
			return nil, err
		}
		decimals, ok := out.(uint8)
		if !ok {
			return nil, errors.Errorf("unexpected decimals type %T", out)
		}
		e.decimals.Set(key, decimals, cache.NoExpiration)
		return decimals, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint8), nil
}

// Symbol returns the symbol of a token.
func (e *evm) Symbol(ctx context.Context, token string) (string, error) {
	out, err := e.callToken(ctx, token, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := out.(string)
	if !ok {
		return "", errors.Errorf("unexpected symbol type %T", out)
	}
	return symbol, nil
}

// BalanceOf gets token balance for the given address.
//
// Parameters:
// - ctx: the context for managing the request
// - token: the token contract address
// - owner: the address to check balance for
//
// Returns:
// - *big.Int: the token balance
// - error: an error if the balance check fails
func (e *evm) BalanceOf(ctx context.Context, token, owner string) (*big.Int, error) {
	out, err := e.callToken(ctx, token, "balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, err
	}
	return asBigInt(out)
}

// Allowance returns how much spender may transfer from owner.
//
// Parameters:
// - ctx: the context for managing the request
// - token: the token contract address
// - owner: the token holder
// - spender: the approved contract
//
// Returns:
// - *big.Int: the allowance
// - error: an error if the call fails
func (e *evm) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	out, err := e.callToken(ctx, token, "allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, err
	}
	return asBigInt(out)
}

// NativeBalance returns the native balance of an account in wei.
func (e *evm) NativeBalance(ctx context.Context, owner string) (*big.Int, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	balance, err := client.BalanceAt(ctx, common.HexToAddress(owner), nil)
	if err != nil {
		return nil, errors.Wrapf(commonerrors.ErrTransientRPC, "failed to get native balance: %v", err)
	}
	return balance, nil
}

func asBigInt(v interface{}) (*big.Int, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return nil, errors.Errorf("unexpected uint256 type %T", v)
	}
	return n, nil
}
