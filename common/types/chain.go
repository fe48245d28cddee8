package types

import (
	"context"
	"math/big"
	"time"
)

const (
	// LegacyTxType selects gas-price transactions.
	LegacyTxType uint64 = 0
	// DynamicFeeTxType selects EIP-1559 transactions.
	DynamicFeeTxType uint64 = 2
)

// ChainConfig holds the configuration for a specific chain implementation.
//
// Fields:
// - Name: the name of the chain.
// - ChainType: the type of the chain.
// - ChainID: the EVM chain id.
// - RpcUrl: the URL for the chain's RPC endpoint.
// - TxType: the type of transactions sent on the chain.
// - GasPriceMultiplier: percent applied to the suggested legacy gas price.
// - NativeSymbol: the symbol of the gas token.
// - RouterAddress: the Stargate router contract.
// - LayerZeroChainID: the LayerZero endpoint id of the chain.
// - SwapGasLimit: the gas budget for a swap call.
// - ExplorerHost: the block explorer host, e.g. "polygonscan.com".
// - BridgeToken: the stablecoin bridged out of this chain by default.
// - Tokens: token contracts deployed on this chain.
// - RefuelAddress: the native refuel contract, empty when refuel is unavailable.
// - RPC: client behaviour towards the RPC endpoint.
type ChainConfig struct {
	Name               ChainName
	ChainType          ChainType
	ChainID            uint64
	RpcUrl             string
	TxType             uint64
	GasPriceMultiplier uint64
	NativeSymbol       string
	RouterAddress      string
	LayerZeroChainID   uint16
	SwapGasLimit       uint64
	ExplorerHost       string
	BridgeToken        TokenSymbol
	Tokens             map[TokenSymbol]string
	RefuelAddress      string
	RPC                RPCSettings
}

// RPCSettings tunes how a chain client talks to its endpoint.
type RPCSettings struct {
	RateLimit           float64       // requests per second, 0 disables limiting
	Burst               int           // limiter burst size
	MaxRetries          int           // retries for read calls
	RetryDelay          time.Duration // base delay, doubled on every retry
	ReceiptPollInterval time.Duration // interval between receipt lookups
	ReceiptTimeout      time.Duration // 0 waits until the context ends
	HealthCheckInterval time.Duration // 0 disables the connection monitor
}

// TokenAddress returns the contract of a token on this chain.
func (c *ChainConfig) TokenAddress(symbol TokenSymbol) (string, bool) {
	addr, ok := c.Tokens[symbol]
	return addr, ok && addr != ""
}

// ExplorerTxURL returns the block explorer link of a transaction.
func (c *ChainConfig) ExplorerTxURL(hash string) string {
	return "https://" + c.ExplorerHost + "/tx/" + hash
}

// TokenReader provides ERC20 and native balance queries.
type TokenReader interface {
	// Decimals returns the decimals of a token.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - token: the token contract address.
	//
	// Returns:
	// - uint8: the number of decimals.
	// - error: an error if the call fails.
	Decimals(ctx context.Context, token string) (uint8, error)

	// Symbol returns the symbol of a token.
	Symbol(ctx context.Context, token string) (string, error)

	// BalanceOf returns the token balance of an owner in the smallest unit.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - token: the token contract address.
	// - owner: the account address.
	//
	// Returns:
	// - *big.Int: the balance.
	// - error: an error if the call fails.
	BalanceOf(ctx context.Context, token, owner string) (*big.Int, error)

	// Allowance returns how much spender may transfer from owner.
	Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error)

	// NativeBalance returns the native balance of an account in wei.
	NativeBalance(ctx context.Context, owner string) (*big.Int, error)
}

// FeeQuoter quotes the LayerZero messaging fee.
type FeeQuoter interface {
	// QuoteLayerZeroFee returns the native fee required by the router for a swap.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - params: the quote inputs.
	//
	// Returns:
	// - *big.Int: the native fee in wei.
	// - error: an error if the call fails.
	QuoteLayerZeroFee(ctx context.Context, params *FeeQuoteParams) (*big.Int, error)
}

// TransactionBuilder encodes calls into unsigned transaction requests.
type TransactionBuilder interface {
	// BuildApprove encodes an ERC20 approval.
	BuildApprove(token, spender string, amount *big.Int) (*TxRequest, error)

	// BuildSwap encodes a router swap carrying fee as native value.
	BuildSwap(params *SwapParams, fee *big.Int) (*TxRequest, error)

	// BuildRefuel encodes a native refuel deposit towards an EVM chain id.
	BuildRefuel(dstChainID uint64, recipient string, value *big.Int) (*TxRequest, error)
}

// TransactionSubmitter signs, broadcasts and confirms transactions.
type TransactionSubmitter interface {
	// PendingNonce returns the next nonce of an account including pending transactions.
	PendingNonce(ctx context.Context, address string) (uint64, error)

	// Simulate executes the request as a call against the latest state without broadcasting.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - from: the sender address.
	// - req: the request to simulate.
	//
	// Returns:
	// - error: ErrValidationRejected if the call reverts, another error if the call cannot be made.
	Simulate(ctx context.Context, from string, req *TxRequest) error

	// Submit signs and broadcasts the request, then waits for its receipt.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - signer: the wallet signing the transaction.
	// - req: the request to submit.
	//
	// Returns:
	// - *TransactionOutcome: the mined transaction, nil if it was never broadcast.
	// - error: ErrBroadcastFailed, ErrSignFailed, ErrTransientRPC or ErrReceiptWait.
	Submit(ctx context.Context, signer TxSigner, req *TxRequest) (*TransactionOutcome, error)
}

// Chain combines all chain-specific functionality.
type Chain interface {
	TokenReader
	FeeQuoter
	TransactionBuilder
	TransactionSubmitter

	// GetConfig returns the immutable configuration of the chain.
	GetConfig() *ChainConfig

	// Close releases the RPC connection and stops background monitors.
	Close()
}

// ChainRegistry manages multiple chains.
type ChainRegistry interface {
	// Add adds a new chain to the registry.
	//
	// Parameters:
	// - ctx: the context for managing the connection.
	// - config: the configuration for the chain to add.
	//
	// Returns:
	// - error: an error if adding the chain fails.
	Add(ctx context.Context, config *ChainConfig) error

	// Get retrieves a chain from the registry by its name.
	//
	// Parameters:
	// - name: the chain to retrieve.
	//
	// Returns:
	// - Chain: the retrieved chain instance.
	// - error: ErrChainNotFound if the chain is not registered.
	Get(name ChainName) (Chain, error)

	// Remove removes a chain from the registry and closes it.
	Remove(name ChainName)
}
