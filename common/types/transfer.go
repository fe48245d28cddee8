package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// SwapRemoteFunctionType is the Stargate function type used when quoting a plain swap.
	SwapRemoteFunctionType uint8 = 1
	// QuoteToAddress is the placeholder recipient used for fee quotes.
	QuoteToAddress = "0x0000000000000000000000000000000000001010"
	// DefaultDstNativeAddr is the destination native address used when no gas is airdropped.
	DefaultDstNativeAddr = "0x0000000000000000000000000000000000000001"
	// LayerZeroScanTxURL is the cross-chain message explorer for a source transaction hash.
	LayerZeroScanTxURL = "https://layerzeroscan.com/tx/"
)

// LzTxParams are the LayerZero execution parameters attached to a swap.
type LzTxParams struct {
	DstGasForCall   *big.Int `abi:"dstGasForCall"`
	DstNativeAmount *big.Int `abi:"dstNativeAmount"`
	DstNativeAddr   []byte   `abi:"dstNativeAddr"`
}

// DefaultLzTxParams returns the parameters for a swap with no destination call and no gas airdrop.
func DefaultLzTxParams() LzTxParams {
	return LzTxParams{
		DstGasForCall:   big.NewInt(0),
		DstNativeAmount: big.NewInt(0),
		DstNativeAddr:   common.HexToAddress(DefaultDstNativeAddr).Bytes(),
	}
}

// FeeQuoteParams are the inputs of the router's fee quote.
type FeeQuoteParams struct {
	DstChainID   uint16
	FunctionType uint8
	ToAddress    []byte
	Payload      []byte
	LzTxParams   LzTxParams
}

// DefaultFeeQuote returns the quote parameters for a plain swap towards dstChainID.
func DefaultFeeQuote(dstChainID uint16) *FeeQuoteParams {
	return &FeeQuoteParams{
		DstChainID:   dstChainID,
		FunctionType: SwapRemoteFunctionType,
		ToAddress:    common.HexToAddress(QuoteToAddress).Bytes(),
		Payload:      []byte{},
		LzTxParams:   DefaultLzTxParams(),
	}
}

// SwapParams are the arguments of the router's swap call.
type SwapParams struct {
	DstChainID    uint16
	SrcPoolID     *big.Int
	DstPoolID     *big.Int
	RefundAddress string
	AmountIn      *big.Int
	AmountOutMin  *big.Int
	LzTxParams    LzTxParams
	To            []byte
	Payload       []byte
}

// TransferRequest represents one bridging leg.
//
// Fields:
// - Source: the chain funds leave from.
// - Destination: the chain funds arrive on.
// - Token: the symbol of the source token.
// - TokenAddress: the source token contract.
// - Wallet: the sender address.
// - DstLayerZeroID: the LayerZero id of the destination chain.
// - SrcPoolID: the Stargate pool on the source chain.
// - DstPoolID: the Stargate pool on the destination chain.
// - HumanAmount: the requested amount in whole tokens.
// - AmountIn: the requested amount in the token's smallest unit.
// - AmountOutMin: the minimum accepted on the destination, in the token's smallest unit.
// - Decimals: the decimals of the source token.
type TransferRequest struct {
	Source         ChainName
	Destination    ChainName
	Token          TokenSymbol
	TokenAddress   string
	Wallet         string
	DstLayerZeroID uint16
	SrcPoolID      uint64
	DstPoolID      uint64
	HumanAmount    string
	AmountIn       *big.Int
	AmountOutMin   *big.Int
	Decimals       uint8
}

// SwapParams converts the request into router call arguments. The refund address and the
// recipient are both the sender.
func (r *TransferRequest) SwapParams() *SwapParams {
	return &SwapParams{
		DstChainID:    r.DstLayerZeroID,
		SrcPoolID:     new(big.Int).SetUint64(r.SrcPoolID),
		DstPoolID:     new(big.Int).SetUint64(r.DstPoolID),
		RefundAddress: r.Wallet,
		AmountIn:      r.AmountIn,
		AmountOutMin:  r.AmountOutMin,
		LzTxParams:    DefaultLzTxParams(),
		To:            common.HexToAddress(r.Wallet).Bytes(),
		Payload:       []byte{},
	}
}
