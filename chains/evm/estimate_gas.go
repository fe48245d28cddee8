package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// GasPriceData represents the gas price data for EIP-1559 transactions.
type GasPriceData struct {
	MaxFeePerGas         *big.Int // The maximum fee per gas.
	MaxPriorityFeePerGas *big.Int // The maximum priority fee per gas.
	IsEIP1559            bool     // Indicates if the transaction is EIP-1559.
}

// estimateGas estimates the gas required for a transaction and adds a 10% margin.
//
// Parameters:
// - ctx: the context for managing the request.
// - from: the sender of the transaction.
// - toAddress: the recipient address of the transaction.
// - value: the amount of native currency to send with the transaction.
// - data: the input data for the transaction.
//
// Returns:
// - uint64: the gas limit to use.
// - error: an error if the client is not initialized or if the gas estimation fails.
func (e *evm) estimateGas(ctx context.Context, from common.Address, toAddress string, value *big.Int, data []byte) (uint64, error) {
	client, err := e.getClient()
	if err != nil {
		return 0, err
	}

	to := common.HexToAddress(toAddress)
	estimated, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return 0, err
	}

	return estimated + estimated/10, nil
}

// getEIP1559GasPrice retrieves the gas price data for EIP-1559 transactions.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - *GasPriceData: the gas price data for EIP-1559 transactions.
// - error: an error if the client is not initialized or if there is an issue retrieving the gas price data.
func (e *evm) getEIP1559GasPrice(ctx context.Context) (*GasPriceData, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	suggestedTip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		e.logger.WithField("chain", e.config.Name).WithError(err).Warn("Failed to get suggested gas tip")
		suggestedTip = big.NewInt(1)
	}

	if suggestedTip.Sign() == 0 {
		suggestedTip = big.NewInt(1)
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		e.logger.WithField("chain", e.config.Name).WithError(err).Warn("Failed to get header by number")
		return nil, errors.Wrap(err, "failed to get header by number")
	}

	baseFee := header.BaseFee
	if baseFee == nil {
		e.logger.WithField("chain", e.config.Name).Warn("Base fee is nil")
		return nil, errors.New("base fee is nil")
	}

	baseFeeBuf := new(big.Int).Mul(baseFee, big.NewInt(130))
	baseFeeBuf = baseFeeBuf.Div(baseFeeBuf, big.NewInt(100))
	maxFeePerGas := new(big.Int).Add(baseFeeBuf, suggestedTip)

	if maxFeePerGas.Cmp(suggestedTip) <= 0 {
		maxFeePerGas = new(big.Int).Add(suggestedTip, baseFee)
	}

	return &GasPriceData{
		MaxFeePerGas:         maxFeePerGas,
		MaxPriorityFeePerGas: suggestedTip,
		IsEIP1559:            true,
	}, nil
}

// getLegacyGasPrice returns the node's suggested gas price scaled by the chain's multiplier percent.
func (e *evm) getLegacyGasPrice(ctx context.Context) (*big.Int, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get gas price")
	}

	multiplier := e.config.GasPriceMultiplier
	if multiplier == 0 {
		multiplier = 100
	}

	gasPrice = new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(multiplier))
	return gasPrice.Div(gasPrice, big.NewInt(100)), nil
}
