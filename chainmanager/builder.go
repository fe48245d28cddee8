package chainmanager

import (
	"github.com/ClipFinance/stargate-bridger/common/types"
)

// ChainBuilder is a builder pattern implementation for chain configuration.
// It allows setting the components of the chain such as token reader,
// fee quoter, transaction builder and transaction submitter.
type ChainBuilder struct {
	config    *types.ChainConfig         // Chain configuration.
	reader    types.TokenReader          // Token reader implementation.
	quoter    types.FeeQuoter            // Fee quoter implementation.
	builder   types.TransactionBuilder   // Transaction builder implementation.
	submitter types.TransactionSubmitter // Transaction submitter implementation.
	closer    func()                     // Releases the underlying connection.
}

// NewChainBuilder creates a new chain builder instance.
//
// Parameters:
// - config: the chain configuration.
//
// Returns:
// - *ChainBuilder: a new ChainBuilder instance.
func NewChainBuilder(config *types.ChainConfig) *ChainBuilder {
	return &ChainBuilder{
		config: config,
	}
}

// WithTokenReader sets token reader implementation.
//
// Parameters:
// - reader: the token reader implementation.
//
// Returns:
// - *ChainBuilder: the updated ChainBuilder instance.
func (b *ChainBuilder) WithTokenReader(reader types.TokenReader) *ChainBuilder {
	b.reader = reader
	return b
}

// WithFeeQuoter sets fee quoter implementation.
//
// Parameters:
// - quoter: the fee quoter implementation.
//
// Returns:
// - *ChainBuilder: the updated ChainBuilder instance.
func (b *ChainBuilder) WithFeeQuoter(quoter types.FeeQuoter) *ChainBuilder {
	b.quoter = quoter
	return b
}

// WithTransactionBuilder sets transaction builder implementation.
//
// Parameters:
// - builder: the transaction builder implementation.
//
// Returns:
// - *ChainBuilder: the updated ChainBuilder instance.
func (b *ChainBuilder) WithTransactionBuilder(builder types.TransactionBuilder) *ChainBuilder {
	b.builder = builder
	return b
}

// WithTransactionSubmitter sets transaction submitter implementation.
//
// Parameters:
// - submitter: the transaction submitter implementation.
//
// Returns:
// - *ChainBuilder: the updated ChainBuilder instance.
func (b *ChainBuilder) WithTransactionSubmitter(submitter types.TransactionSubmitter) *ChainBuilder {
	b.submitter = submitter
	return b
}

// WithCloser sets the function called when the chain is closed.
func (b *ChainBuilder) WithCloser(closer func()) *ChainBuilder {
	b.closer = closer
	return b
}

// Build creates a new chain instance with configured implementations.
//
// Returns:
// - types.Chain: a new Chain instance with the configured implementations.
func (b *ChainBuilder) Build() types.Chain {
	return NewChain(b.config, b.reader, b.quoter, b.builder, b.submitter, b.closer)
}
