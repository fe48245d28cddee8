// Package poller waits for a wallet's token balance to reach a usable amount.
package poller

import (
	"context"
	"math/big"
	"time"

	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ClipFinance/stargate-bridger/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultInterval is the wait between two balance reads.
	DefaultInterval = 30 * time.Second
	// DefaultLogEvery is how many iterations pass between progress lines.
	DefaultLogEvery = 3
	// dustWholeTokens is the balance, in whole tokens, below which a wallet counts as empty.
	dustWholeTokens = 3
)

// BalanceReader reads token balances.
type BalanceReader interface {
	BalanceOf(ctx context.Context, token, owner string) (*big.Int, error)
}

// Options configure a Poller. Zero values select the defaults.
type Options struct {
	Interval time.Duration // Wait between reads.
	Timeout  time.Duration // Upper bound of one Poll call, 0 waits until the context ends.
	LogEvery int           // Iterations between progress lines.
}

// Poller repeatedly reads a balance until it clears the dust threshold.
type Poller struct {
	interval time.Duration
	timeout  time.Duration
	logEvery int
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

// New creates a poller.
//
// Parameters:
// - opts: polling options.
// - logger: the logger for progress lines.
// - m: metrics sink, may be nil.
//
// Returns:
// - *Poller: the poller.
func New(opts Options, logger *logrus.Logger, m *metrics.Metrics) *Poller {
	p := &Poller{
		interval: opts.Interval,
		timeout:  opts.Timeout,
		logEvery: opts.LogEvery,
		logger:   logger,
		metrics:  m,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.logEvery <= 0 {
		p.logEvery = DefaultLogEvery
	}
	return p
}

// DustThreshold returns the smallest balance worth bridging for a token with the given decimals.
func DustThreshold(decimals uint8) *big.Int {
	d := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return d.Mul(d, big.NewInt(dustWholeTokens))
}

// Poll reads the balance of address until it reaches dust.
//
// Parameters:
// - ctx: the context for cancelling the wait.
// - reader: the chain to read from.
// - chain: the chain name, for logs and metrics.
// - address: the wallet address.
// - token: the token contract.
// - dust: the minimum balance that ends the wait.
// - stopIfZero: return false after the first read instead of waiting.
//
// Returns:
// - bool: true once the balance reached dust, false if stopIfZero ended the wait.
// - error: a wrapped read error, ErrPollTimeout, or the context error.
func (p *Poller) Poll(ctx context.Context, reader BalanceReader, chain types.ChainName, address, token string, dust *big.Int, stopIfZero bool) (bool, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log := p.logger.WithFields(logrus.Fields{
		"wallet": address,
		"chain":  chain,
	})

	ready, err := p.read(ctx, reader, chain, address, token, dust)
	if err != nil || ready {
		return ready, err
	}
	if stopIfZero {
		log.Info("Balance below dust threshold, not waiting")
		return false, nil
	}

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for iteration := 1; ; iteration++ {
		select {
		case <-ctx.Done():
			return false, p.ctxErr(ctx)
		case <-timer.C:
		}

		ready, err := p.read(ctx, reader, chain, address, token, dust)
		if err != nil || ready {
			return ready, err
		}

		if iteration%p.logEvery == 0 {
			log.WithField("iteration", iteration).Info("Waiting for funds to arrive")
		}
		timer.Reset(p.interval)
	}
}

func (p *Poller) read(ctx context.Context, reader BalanceReader, chain types.ChainName, address, token string, dust *big.Int) (bool, error) {
	p.metrics.ObservePoll(chain.String())

	balance, err := reader.BalanceOf(ctx, token, address)
	if err != nil {
		if ctx.Err() != nil {
			return false, p.ctxErr(ctx)
		}
		return false, errors.Wrapf(err, "failed to read balance of %s on %s", address, chain)
	}
	return balance.Cmp(dust) >= 0, nil
}

// ctxErr tells a poll timeout apart from cancellation by the caller.
func (p *Poller) ctxErr(ctx context.Context) error {
	if p.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(commonerrors.ErrPollTimeout, "after %s", p.timeout)
	}
	return ctx.Err()
}
