package evm

import (
	"context"
	"sync"
	"time"

	"github.com/ClipFinance/stargate-bridger/chainmanager"
	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ClipFinance/stargate-bridger/connectionmonitor"
	"github.com/ClipFinance/stargate-bridger/metrics"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// defaultReceiptPollInterval is used when the chain configuration leaves it unset.
	defaultReceiptPollInterval = 2 * time.Second
	// decimalsCacheCleanup is how often expired decimals entries are purged.
	decimalsCacheCleanup = 10 * time.Minute
)

// Options carry process-wide dependencies into every EVM chain.
type Options struct {
	Metrics *metrics.Metrics // Metrics sink, may be nil.
}

// dialFunc opens a raw connection to an RPC endpoint.
type dialFunc func(ctx context.Context, url string) (backend, error)

func dialEthClient(ctx context.Context, url string) (backend, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// evm represents the base EVM chain implementation.
type evm struct {
	config  *types.ChainConfig // Chain configuration.
	logger  *logrus.Logger     // Logger for logging events.
	metrics *metrics.Metrics   // Metrics sink.
	dial    dialFunc           // Connection factory used on reconnect.

	// Protected fields with their own mutexes.
	clientMutex sync.RWMutex // Mutex for client.
	client      backend      // Rate-limited client.

	decimals      *cache.Cache       // Token decimals by address. Decimals never change, entries do not expire.
	decimalsGroup singleflight.Group // Collapses concurrent decimals lookups of one token.

	monitorMutex sync.RWMutex                        // Mutex for connection monitor.
	monitor      connectionmonitor.ConnectionMonitor // Connection monitor.
}

// NewEvmChain creates a new EVM chain implementation.
//
// Parameters:
// - ctx: the context for managing the connection and the connection monitor.
// - config: the chain configuration.
// - logger: the logger for logging events.
// - opts: process-wide dependencies.
//
// Returns:
// - types.Chain: a new EVM chain instance.
// - error: an error if the endpoint cannot be reached or serves another chain.
func NewEvmChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger, opts Options) (types.Chain, error) {
	raw, err := dialEthClient(ctx, config.RpcUrl)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create client")
	}

	chain := newEvm(config, raw, logger, opts.Metrics)
	chain.dial = dialEthClient

	if err := chain.verifyChainID(ctx); err != nil {
		chain.Close()
		return nil, err
	}

	if config.RPC.HealthCheckInterval > 0 {
		if err := chain.initMonitor(ctx); err != nil {
			chain.Close()
			return nil, errors.Wrap(err, "failed to init connection monitor")
		}
	}

	return chain.build(), nil
}

// newEvm wires a chain around an already open connection.
func newEvm(config *types.ChainConfig, raw backend, logger *logrus.Logger, m *metrics.Metrics) *evm {
	return &evm{
		config:   config,
		logger:   logger,
		metrics:  m,
		client:   newRPCClient(raw, config, logger, m),
		decimals: cache.New(cache.NoExpiration, decimalsCacheCleanup),
	}
}

// build exposes the chain through the thread-safe chain wrapper.
func (e *evm) build() types.Chain {
	return chainmanager.NewChainBuilder(e.config).
		WithTokenReader(e).
		WithFeeQuoter(e).
		WithTransactionBuilder(e).
		WithTransactionSubmitter(e).
		WithCloser(e.Close).
		Build()
}

// verifyChainID makes sure the endpoint serves the configured network, so signatures
// are never produced for the wrong chain id.
func (e *evm) verifyChainID(ctx context.Context) error {
	client, err := e.getClient()
	if err != nil {
		return err
	}

	id, err := client.ChainID(ctx)
	if err != nil {
		return errors.Wrapf(commonerrors.ErrTransientRPC, "chain %s: failed to get chain id: %v", e.config.Name, err)
	}
	if id.Uint64() != e.config.ChainID {
		return errors.Wrapf(commonerrors.ErrInvalidChainID, "chain %s: endpoint reports %s, want %d", e.config.Name, id, e.config.ChainID)
	}
	return nil
}

// getClient returns the current client.
//
// Returns:
// - backend: the client.
// - error: an error if the chain was closed.
func (e *evm) getClient() (backend, error) {
	e.clientMutex.RLock()
	client := e.client
	e.clientMutex.RUnlock()

	if client == nil {
		return nil, errors.New("client not initialized")
	}
	return client, nil
}

// Close should be called when the chain is no longer needed.
// It stops the connection monitor and closes the client.
func (e *evm) Close() {
	e.monitorMutex.Lock()
	if e.monitor != nil {
		e.monitor.Stop()
		e.monitor = nil
	}
	e.monitorMutex.Unlock()

	e.clientMutex.Lock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	e.clientMutex.Unlock()
}

// GetConfig returns chain configuration.
func (e *evm) GetConfig() *types.ChainConfig {
	return e.config
}

func (e *evm) receiptPollInterval() time.Duration {
	if e.config.RPC.ReceiptPollInterval > 0 {
		return e.config.RPC.ReceiptPollInterval
	}
	return defaultReceiptPollInterval
}
