package evm

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ClipFinance/stargate-bridger/metrics"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// backend is the subset of *ethclient.Client used by the chain.
type backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	Close()
}

// rpcClient wraps a backend with a request rate limit and bounded retries for reads.
// Broadcasts are rate limited but never retried.
type rpcClient struct {
	next       backend          // Underlying connection.
	limiter    *rate.Limiter    // Nil when unlimited.
	maxRetries int              // Retries after the first attempt.
	retryDelay time.Duration    // Base backoff, doubled on every retry.
	chain      string           // Chain name for logs and metrics.
	logger     *logrus.Logger   // Logger for retry warnings.
	metrics    *metrics.Metrics // Retry counter.
}

// newRPCClient wraps next according to the chain's RPC settings.
//
// Parameters:
// - next: the raw connection.
// - config: the chain configuration.
// - logger: the logger for retry warnings.
// - m: metrics sink, may be nil.
//
// Returns:
// - *rpcClient: the wrapped client.
func newRPCClient(next backend, config *types.ChainConfig, logger *logrus.Logger, m *metrics.Metrics) *rpcClient {
	c := &rpcClient{
		next:       next,
		maxRetries: config.RPC.MaxRetries,
		retryDelay: config.RPC.RetryDelay,
		chain:      config.Name.String(),
		logger:     logger,
		metrics:    m,
	}
	if config.RPC.RateLimit > 0 {
		burst := config.RPC.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RPC.RateLimit), burst)
	}
	return c
}

func (c *rpcClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// retryable reports whether a failed read is worth repeating.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ethereum.NotFound) {
		return false
	}
	return !isRevert(err)
}

// isRevert reports whether the node rejected a call because the EVM reverted.
func isRevert(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert")
}

// read performs fn under the rate limit, retrying transient failures with exponential backoff.
func read[T any](ctx context.Context, c *rpcClient, method string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	delay := c.retryDelay

	for attempt := 0; ; attempt++ {
		if err := c.wait(ctx); err != nil {
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= c.maxRetries || !retryable(err) {
			return zero, err
		}

		c.metrics.ObserveRetry(c.chain, method)
		c.logger.WithFields(logrus.Fields{
			"chain":   c.chain,
			"method":  method,
			"attempt": attempt + 1,
		}).WithError(err).Warn("RPC call failed, retrying")

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (c *rpcClient) ChainID(ctx context.Context) (*big.Int, error) {
	return read(ctx, c, "eth_chainId", c.next.ChainID)
}

func (c *rpcClient) BlockNumber(ctx context.Context) (uint64, error) {
	return read(ctx, c, "eth_blockNumber", c.next.BlockNumber)
}

func (c *rpcClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return read(ctx, c, "eth_getBalance", func(ctx context.Context) (*big.Int, error) {
		return c.next.BalanceAt(ctx, account, blockNumber)
	})
}

func (c *rpcClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return read(ctx, c, "eth_call", func(ctx context.Context) ([]byte, error) {
		return c.next.CallContract(ctx, msg, blockNumber)
	})
}

func (c *rpcClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return read(ctx, c, "eth_getTransactionCount", func(ctx context.Context) (uint64, error) {
		return c.next.PendingNonceAt(ctx, account)
	})
}

func (c *rpcClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return read(ctx, c, "eth_gasPrice", c.next.SuggestGasPrice)
}

func (c *rpcClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return read(ctx, c, "eth_maxPriorityFeePerGas", c.next.SuggestGasTipCap)
}

func (c *rpcClient) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return read(ctx, c, "eth_getBlockByNumber", func(ctx context.Context) (*ethtypes.Header, error) {
		return c.next.HeaderByNumber(ctx, number)
	})
}

func (c *rpcClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return read(ctx, c, "eth_estimateGas", func(ctx context.Context) (uint64, error) {
		return c.next.EstimateGas(ctx, msg)
	})
}

func (c *rpcClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	return read(ctx, c, "eth_getTransactionReceipt", func(ctx context.Context) (*ethtypes.Receipt, error) {
		return c.next.TransactionReceipt(ctx, txHash)
	})
}

// SendTransaction broadcasts once. A failed broadcast is reported to the caller as is.
func (c *rpcClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.next.SendTransaction(ctx, tx)
}

func (c *rpcClient) Close() {
	c.next.Close()
}
