package chainmanager

import (
	"context"
	"math/big"
	"sync"

	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
)

// ErrNotImplemented is returned when a chain is asked for a capability it was built without.
var ErrNotImplemented = commonerrors.ErrNotImplemented

// Chain implements types.Chain interface with thread-safe access to dependencies.
// It provides methods to interact with the chain's token reader, fee quoter, transaction builder
// and transaction submitter. Each dependency is protected by a read-write mutex to ensure thread-safe access.
type Chain struct {
	config    *types.ChainConfig         // Chain configuration.
	reader    types.TokenReader          // Token reader implementation.
	quoter    types.FeeQuoter            // Fee quoter implementation.
	builder   types.TransactionBuilder   // Transaction builder implementation.
	submitter types.TransactionSubmitter // Transaction submitter implementation.
	closer    func()                     // Releases the underlying connection.

	// Mutexes for thread-safe access to dependencies.
	readerMutex    sync.RWMutex // Mutex for token reader.
	quoterMutex    sync.RWMutex // Mutex for fee quoter.
	builderMutex   sync.RWMutex // Mutex for transaction builder.
	submitterMutex sync.RWMutex // Mutex for transaction submitter.
	closeOnce      sync.Once
}

// NewChain creates a new Chain instance.
//
// Parameters:
// - config: the chain configuration.
// - reader: the token reader implementation.
// - quoter: the fee quoter implementation.
// - builder: the transaction builder implementation.
// - submitter: the transaction submitter implementation.
// - closer: called once by Close, may be nil.
//
// Returns:
// - *Chain: a new Chain instance.
func NewChain(
	config *types.ChainConfig,
	reader types.TokenReader,
	quoter types.FeeQuoter,
	builder types.TransactionBuilder,
	submitter types.TransactionSubmitter,
	closer func(),
) *Chain {
	return &Chain{
		config:    config,
		reader:    reader,
		quoter:    quoter,
		builder:   builder,
		submitter: submitter,
		closer:    closer,
	}
}

// GetConfig returns chain configuration.
//
// Returns:
// - *types.ChainConfig: the chain configuration instance.
func (c *Chain) GetConfig() *types.ChainConfig {
	return c.config
}

// Close releases the chain connection. Calling it more than once is safe.
func (c *Chain) Close() {
	c.closeOnce.Do(func() {
		if c.closer != nil {
			c.closer()
		}
	})
}

// Decimals returns token decimals with thread-safe access.
//
// Parameters:
// - ctx: context for managing the request.
// - token: the token contract address.
//
// Returns:
// - uint8: the number of decimals.
// - error: an error if the reader is not implemented or the call fails.
func (c *Chain) Decimals(ctx context.Context, token string) (uint8, error) {
	c.readerMutex.RLock()
	reader := c.reader
	c.readerMutex.RUnlock()

	if reader == nil {
		return 0, ErrNotImplemented
	}
	return reader.Decimals(ctx, token)
}

// Symbol returns the token symbol with thread-safe access.
func (c *Chain) Symbol(ctx context.Context, token string) (string, error) {
	c.readerMutex.RLock()
	reader := c.reader
	c.readerMutex.RUnlock()

	if reader == nil {
		return "", ErrNotImplemented
	}
	return reader.Symbol(ctx, token)
}

// BalanceOf returns a token balance with thread-safe access.
//
// Parameters:
// - ctx: context for managing the request.
// - token: the token contract address.
// - owner: the account address.
//
// Returns:
// - *big.Int: the balance in the token's smallest unit.
// - error: an error if the reader is not implemented or the call fails.
func (c *Chain) BalanceOf(ctx context.Context, token, owner string) (*big.Int, error) {
	c.readerMutex.RLock()
	reader := c.reader
	c.readerMutex.RUnlock()

	if reader == nil {
		return nil, ErrNotImplemented
	}
	return reader.BalanceOf(ctx, token, owner)
}

// Allowance returns a token allowance with thread-safe access.
func (c *Chain) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	c.readerMutex.RLock()
	reader := c.reader
	c.readerMutex.RUnlock()

	if reader == nil {
		return nil, ErrNotImplemented
	}
	return reader.Allowance(ctx, token, owner, spender)
}

// NativeBalance returns the native balance with thread-safe access.
func (c *Chain) NativeBalance(ctx context.Context, owner string) (*big.Int, error) {
	c.readerMutex.RLock()
	reader := c.reader
	c.readerMutex.RUnlock()

	if reader == nil {
		return nil, ErrNotImplemented
	}
	return reader.NativeBalance(ctx, owner)
}

// QuoteLayerZeroFee quotes the messaging fee with thread-safe access.
//
// Parameters:
// - ctx: context for managing the request.
// - params: the quote inputs.
//
// Returns:
// - *big.Int: the native fee in wei.
// - error: an error if the quoter is not implemented or the call fails.
func (c *Chain) QuoteLayerZeroFee(ctx context.Context, params *types.FeeQuoteParams) (*big.Int, error) {
	c.quoterMutex.RLock()
	quoter := c.quoter
	c.quoterMutex.RUnlock()

	if quoter == nil {
		return nil, ErrNotImplemented
	}
	return quoter.QuoteLayerZeroFee(ctx, params)
}

// BuildApprove encodes an approval with thread-safe access.
func (c *Chain) BuildApprove(token, spender string, amount *big.Int) (*types.TxRequest, error) {
	c.builderMutex.RLock()
	builder := c.builder
	c.builderMutex.RUnlock()

	if builder == nil {
		return nil, ErrNotImplemented
	}
	return builder.BuildApprove(token, spender, amount)
}

// BuildSwap encodes a router swap with thread-safe access.
func (c *Chain) BuildSwap(params *types.SwapParams, fee *big.Int) (*types.TxRequest, error) {
	c.builderMutex.RLock()
	builder := c.builder
	c.builderMutex.RUnlock()

	if builder == nil {
		return nil, ErrNotImplemented
	}
	return builder.BuildSwap(params, fee)
}

// BuildRefuel encodes a refuel deposit with thread-safe access.
func (c *Chain) BuildRefuel(dstChainID uint64, recipient string, value *big.Int) (*types.TxRequest, error) {
	c.builderMutex.RLock()
	builder := c.builder
	c.builderMutex.RUnlock()

	if builder == nil {
		return nil, ErrNotImplemented
	}
	return builder.BuildRefuel(dstChainID, recipient, value)
}

// PendingNonce returns the pending nonce with thread-safe access.
func (c *Chain) PendingNonce(ctx context.Context, address string) (uint64, error) {
	c.submitterMutex.RLock()
	submitter := c.submitter
	c.submitterMutex.RUnlock()

	if submitter == nil {
		return 0, ErrNotImplemented
	}
	return submitter.PendingNonce(ctx, address)
}

// Simulate dry-runs a request with thread-safe access.
func (c *Chain) Simulate(ctx context.Context, from string, req *types.TxRequest) error {
	c.submitterMutex.RLock()
	submitter := c.submitter
	c.submitterMutex.RUnlock()

	if submitter == nil {
		return ErrNotImplemented
	}
	return submitter.Simulate(ctx, from, req)
}

// Submit signs, sends and confirms a request with thread-safe access.
//
// Parameters:
// - ctx: context for managing the lifecycle of the submission.
// - signer: the wallet signing the transaction.
// - req: the request to submit.
//
// Returns:
// - *types.TransactionOutcome: the mined transaction, nil if it was never broadcast.
// - error: an error if the submitter is not implemented or the submission fails.
func (c *Chain) Submit(ctx context.Context, signer types.TxSigner, req *types.TxRequest) (*types.TransactionOutcome, error) {
	c.submitterMutex.RLock()
	submitter := c.submitter
	c.submitterMutex.RUnlock()

	if submitter == nil {
		return nil, ErrNotImplemented
	}
	return submitter.Submit(ctx, signer, req)
}
