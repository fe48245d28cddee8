package evm

import (
	"context"

	"github.com/ClipFinance/stargate-bridger/connectionmonitor"
	"github.com/pkg/errors"
)

// evmConnectionManager implements the BlockchainClient interface and manages the connection to the EVM chain.
type evmConnectionManager struct {
	chain *evm // Reference to the EVM chain instance.
}

// initMonitor initializes the connection monitor for the EVM chain.
//
// Parameters:
// - ctx: the context for managing the initialization process.
//
// Returns:
// - error: an error if there is an issue starting the connection monitor.
func (e *evm) initMonitor(ctx context.Context) error {
	e.monitorMutex.Lock()
	defer e.monitorMutex.Unlock()

	opts := connectionmonitor.Options{Interval: e.config.RPC.HealthCheckInterval}
	if e.metrics != nil {
		opts.Reporter = e.metrics
	}

	connectionManager := &evmConnectionManager{chain: e}
	e.monitor = connectionmonitor.NewConnectionMonitor(connectionManager, e.logger, e.config.Name.String(), opts)
	return e.monitor.Start(ctx)
}

// CheckConnection checks the connection to the Ethereum client by retrieving the current block number.
//
// Parameters:
// - ctx: the context for managing the connection check.
//
// Returns:
// - error: an error if the client is not initialized or if there is an issue retrieving the block number.
func (w *evmConnectionManager) CheckConnection(ctx context.Context) error {
	client, err := w.chain.getClient()
	if err != nil {
		return err
	}

	_, err = client.BlockNumber(ctx)
	return err
}

// Reconnect re-establishes the connection to the RPC endpoint. The new connection keeps
// the rate limit and retry policy of the chain.
//
// Parameters:
// - ctx: the context for managing the reconnection process.
//
// Returns:
// - error: an error if there is an issue dialing the new client or the chain is already closed.
func (w *evmConnectionManager) Reconnect(ctx context.Context) error {
	if w.chain.dial == nil {
		return errors.New("reconnect not supported")
	}

	raw, err := w.chain.dial(ctx, w.chain.config.RpcUrl)
	if err != nil {
		return err
	}

	w.chain.clientMutex.Lock()
	defer w.chain.clientMutex.Unlock()

	// The chain was closed while dialing.
	if w.chain.client == nil {
		raw.Close()
		return errors.New("chain closed")
	}
	w.chain.client.Close()
	w.chain.client = newRPCClient(raw, w.chain.config, w.chain.logger, w.chain.metrics)

	return nil
}
