package evm

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// waitReceipt polls for the receipt of a broadcast transaction until it is mined,
// the receipt timeout elapses or the context ends. Read errors are logged and polling goes on.
//
// Parameters:
// - ctx: the context for managing the request.
// - hash: the transaction hash.
//
// Returns:
// - *ethtypes.Receipt: the receipt.
// - error: the context error if the wait was cut short, or an error if the chain was closed.
func (e *evm) waitReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	if e.config.RPC.ReceiptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.RPC.ReceiptTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(e.receiptPollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.WithField("txHash", hash.Hex()).Error("Waiting for receipt: context done")
			return nil, ctx.Err()

		case <-ticker.C:
			client, err := e.getClient()
			if err != nil {
				return nil, err
			}

			receipt, err := client.TransactionReceipt(ctx, hash)
			if err != nil {
				// The transaction is already broadcast, a flaky node must not end the wait.
				if !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
					e.logger.WithFields(logrus.Fields{
						"chain":  e.config.Name,
						"txHash": hash.Hex(),
					}).WithError(err).Warn("Failed to get transaction receipt, still waiting")
				}
				continue
			}
			return receipt, nil
		}
	}
}
