package evm

import (
	"context"
	"math/big"

	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// QuoteLayerZeroFee asks the Stargate router for the native fee of a swap.
//
// Parameters:
// - ctx: the context for managing the request.
// - params: the quote inputs.
//
// Returns:
// - *big.Int: the native fee in wei (first value returned by the router).
// - error: an error if the call fails.
func (e *evm) QuoteLayerZeroFee(ctx context.Context, params *types.FeeQuoteParams) (*big.Int, error) {
	if err := contractABIs(); err != nil {
		return nil, err
	}

	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	data, err := router.Pack("quoteLayerZeroFee",
		params.DstChainID,
		params.FunctionType,
		params.ToAddress,
		params.Payload,
		params.LzTxParams,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack quoteLayerZeroFee data")
	}

	routerAddr := common.HexToAddress(e.config.RouterAddress)
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &routerAddr, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(commonerrors.ErrTransientRPC, "failed to quote layerzero fee: %v", err)
	}

	out, err := router.Unpack("quoteLayerZeroFee", result)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack quoteLayerZeroFee result")
	}
	if len(out) != 2 {
		return nil, errors.Errorf("quoteLayerZeroFee returned %d values", len(out))
	}
	return asBigInt(out[0])
}

// BuildApprove encodes an ERC20 approval of amount for spender.
//
// Parameters:
// - token: the token contract.
// - spender: the address allowed to spend.
// - amount: the allowance in the token's smallest unit.
//
// Returns:
// - *types.TxRequest: the unsigned request without a gas budget.
// - error: an error if encoding fails.
func (e *evm) BuildApprove(token, spender string, amount *big.Int) (*types.TxRequest, error) {
	if err := contractABIs(); err != nil {
		return nil, err
	}

	data, err := erc20.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack approve data")
	}

	return &types.TxRequest{
		Kind:  types.TxApprove,
		To:    token,
		Value: big.NewInt(0),
		Data:  data,
	}, nil
}

// BuildSwap encodes a Stargate swap. The fee is attached as native value and the gas
// budget is the chain's swap gas limit.
//
// Parameters:
// - params: the swap arguments.
// - fee: the LayerZero fee quoted for the destination.
//
// Returns:
// - *types.TxRequest: the unsigned request.
// - error: an error if encoding fails.
func (e *evm) BuildSwap(params *types.SwapParams, fee *big.Int) (*types.TxRequest, error) {
	if err := contractABIs(); err != nil {
		return nil, err
	}

	data, err := router.Pack("swap",
		params.DstChainID,
		params.SrcPoolID,
		params.DstPoolID,
		common.HexToAddress(params.RefundAddress),
		params.AmountIn,
		params.AmountOutMin,
		params.LzTxParams,
		params.To,
		params.Payload,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack swap data")
	}

	return &types.TxRequest{
		Kind:     types.TxSwap,
		To:       e.config.RouterAddress,
		Value:    new(big.Int).Set(fee),
		Data:     data,
		GasLimit: e.config.SwapGasLimit,
	}, nil
}

// BuildRefuel encodes a native deposit into the refuel contract. It spends twice the
// chain's swap gas budget.
func (e *evm) BuildRefuel(dstChainID uint64, recipient string, value *big.Int) (*types.TxRequest, error) {
	if e.config.RefuelAddress == "" {
		return nil, errors.Wrapf(commonerrors.ErrRefuelUnsupported, "no refuel contract on %s", e.config.Name)
	}
	if err := contractABIs(); err != nil {
		return nil, err
	}

	data, err := refuelPool.Pack("depositNativeToken", new(big.Int).SetUint64(dstChainID), common.HexToAddress(recipient))
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack depositNativeToken data")
	}

	return &types.TxRequest{
		Kind:     types.TxRefuel,
		To:       e.config.RefuelAddress,
		Value:    new(big.Int).Set(value),
		Data:     data,
		GasLimit: e.config.SwapGasLimit * 2,
	}, nil
}
