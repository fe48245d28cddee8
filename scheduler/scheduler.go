// Package scheduler runs a bridging plan for every wallet of the fleet concurrently.
package scheduler

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ClipFinance/stargate-bridger/amount"
	"github.com/ClipFinance/stargate-bridger/bridge"
	"github.com/ClipFinance/stargate-bridger/chainmanager"
	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ClipFinance/stargate-bridger/metrics"
	"github.com/ClipFinance/stargate-bridger/poller"
	"github.com/ClipFinance/stargate-bridger/route"
	"github.com/ClipFinance/stargate-bridger/wallet"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ChainSource hands out connected chains.
type ChainSource interface {
	Get(name types.ChainName) (types.Chain, error)
}

// Bridger runs a single leg.
type Bridger interface {
	Bridge(ctx context.Context, wallet types.TxSigner, source types.Chain, req *types.TransferRequest) (*bridge.LegResult, error)
}

// BalanceWaiter blocks until a wallet holds a usable balance.
type BalanceWaiter interface {
	Poll(ctx context.Context, reader poller.BalanceReader, chain types.ChainName, address, token string, dust *big.Int, stopIfZero bool) (bool, error)
}

// Recorder persists or publishes finished legs.
type Recorder interface {
	RecordLeg(ctx context.Context, record *types.LegRecord) error
}

// AmountRange bounds the random human amount of every leg.
type AmountRange struct {
	Min       float64
	Max       float64
	Precision uint8
}

const (
	// DefaultRecorderTimeout bounds how long the recorders may take for one leg.
	DefaultRecorderTimeout = 10 * time.Second
	// recordGrace is how long recorders may still run once the run is interrupted.
	recordGrace = time.Second
)

// Options configure a Scheduler.
type Options struct {
	StartJitter     DelayRange    // Pause before a wallet's first leg.
	StopIfZero      bool          // Fail a leg at once instead of waiting for funds.
	Amount          AmountRange   // Requested amount per leg.
	RecorderTimeout time.Duration // Budget of the recorders per leg, DefaultRecorderTimeout if unset.
}

// Deps are the components a Scheduler drives.
type Deps struct {
	Chains      ChainSource
	Definitions *chainmanager.Definitions
	Poller      BalanceWaiter
	Bridger     Bridger
	Calculator  *amount.Calculator
	Recorders   []Recorder
}

// WalletResult is the outcome of a plan for one wallet.
type WalletResult struct {
	Wallet string             // Wallet address.
	Legs   []*types.LegRecord // One record per planned leg, in order.
	Err    error              // The failure that stopped the wallet, nil if every leg succeeded.
}

// Scheduler runs plans across wallets.
type Scheduler struct {
	deps       Deps
	jitter     DelayRange
	stopIfZero bool
	recordTTL  time.Duration
	recordWait time.Duration
	draw       func() *big.Rat
	sleep      func(ctx context.Context, d time.Duration) error
	jitterFor  func(w *wallet.Wallet) time.Duration
	delayFor   func(r DelayRange) time.Duration
	now        func() time.Time
	logger     *logrus.Logger
	metrics    *metrics.Metrics
}

// New creates a scheduler.
//
// Parameters:
// - deps: the chains, poller, orchestrator and recorders.
// - opts: scheduling options.
// - logger: the logger for wallet progress.
// - m: metrics sink, may be nil.
//
// Returns:
// - *Scheduler: the scheduler.
func New(deps Deps, opts Options, logger *logrus.Logger, m *metrics.Metrics) *Scheduler {
	s := &Scheduler{
		deps:       deps,
		jitter:     opts.StartJitter,
		stopIfZero: opts.StopIfZero,
		recordTTL:  opts.RecorderTimeout,
		recordWait: recordGrace,
		sleep:      sleepContext,
		delayFor:   DelayRange.Draw,
		now:        time.Now,
		logger:     logger,
		metrics:    m,
	}
	if s.recordTTL <= 0 {
		s.recordTTL = DefaultRecorderTimeout
	}
	s.jitterFor = func(*wallet.Wallet) time.Duration { return s.jitter.Draw() }
	a := opts.Amount
	s.draw = func() *big.Rat { return amount.RandomAmount(a.Min, a.Max, a.Precision) }
	return s
}

// Run executes plan for every wallet, each in its own goroutine, and waits for all of them.
// A failing wallet never cancels its siblings.
//
// Parameters:
// - ctx: the context for the whole run.
// - wallets: the fleet.
// - plan: the legs to run.
//
// Returns:
// - []WalletResult: one result per wallet, in input order.
func (s *Scheduler) Run(ctx context.Context, wallets []*wallet.Wallet, plan Plan) []WalletResult {
	results := make([]WalletResult, len(wallets))

	var wg sync.WaitGroup
	for i, w := range wallets {
		wg.Add(1)
		go func(i int, w *wallet.Wallet) {
			defer wg.Done()
			results[i] = s.runWallet(ctx, w, plan)
		}(i, w)
	}
	wg.Wait()

	return results
}

func (s *Scheduler) runWallet(ctx context.Context, w *wallet.Wallet, plan Plan) (res WalletResult) {
	address := w.Address()
	res.Wallet = address
	log := s.logger.WithFields(logrus.Fields{"wallet": address, "plan": plan.Name})

	defer func() {
		if r := recover(); r != nil {
			res.Err = errors.Errorf("wallet %s panicked: %v", address, r)
			log.WithError(res.Err).Error("Wallet task crashed")
		}
	}()

	delay := s.jitterFor(w)
	log.WithField("delay", delay).Info("Start delay")
	if err := s.sleep(ctx, delay); err != nil {
		res.Err = err
		res.Legs = s.skipFrom(ctx, address, plan, 0, err)
		return res
	}

	total := plan.legCount()
	for n := 0; n < total; n++ {
		step := plan.Steps[n%len(plan.Steps)]
		record, err := s.runLeg(ctx, w, step.Route, n/len(plan.Steps)+1, n%len(plan.Steps))
		res.Legs = append(res.Legs, record)
		s.record(ctx, record)

		if err != nil {
			res.Err = errors.Wrapf(err, "leg %s", step.Route.Code)
			res.Legs = append(res.Legs, s.skipFrom(ctx, address, plan, n+1, res.Err)...)
			return res
		}

		if n+1 < total {
			pause := s.delayFor(step.DelayAfter)
			log.WithFields(logrus.Fields{"route": step.Route.Code, "delay": pause}).Info("Waiting before next leg")
			if err := s.sleep(ctx, pause); err != nil {
				res.Err = err
				res.Legs = append(res.Legs, s.skipFrom(ctx, address, plan, n+1, err)...)
				return res
			}
		}
	}

	log.Info("Plan finished")
	return res
}

// runLeg waits for funds, draws the amount and bridges it. The error is nil only for a successful swap.
func (s *Scheduler) runLeg(ctx context.Context, w *wallet.Wallet, r route.Route, repetition, index int) (*types.LegRecord, error) {
	address := w.Address()
	record := &types.LegRecord{
		Wallet:      address,
		Route:       r.Code,
		Source:      r.Source,
		Destination: r.Destination,
		Status:      types.LegPending,
		Repetition:  repetition,
		LegIndex:    index,
		StartedAt:   s.now(),
	}
	log := s.logger.WithFields(logrus.Fields{"wallet": address, "route": r.Code})

	result, decimals, err := s.bridgeLeg(ctx, w, r, record)
	record.FinishedAt = s.now()
	if result != nil {
		record.AmountIn = amount.FromSmallestUnit(result.AmountIn, decimals)
		record.AmountOutMin = amount.FromSmallestUnit(result.AmountOutMin, decimals)
		record.LayerZeroURL = result.LayerZeroURL
		if result.Swap != nil {
			record.TxHash = result.Swap.Hash
			record.ExplorerURL = result.Swap.ExplorerURL
		}
	}

	switch {
	case err != nil:
		record.Status = types.LegFailed
		record.SubStatus = Classify(err)
		record.Error = err.Error()
		log.WithError(err).WithField("subStatus", record.SubStatus).Error("Leg failed")
	case result.Swap == nil || !result.Swap.Success:
		err = errors.New("swap transaction reverted")
		record.Status = types.LegFailed
		record.SubStatus = types.Reverted
		record.Error = err.Error()
	case result.Substituted:
		record.Status = types.LegDone
		record.SubStatus = types.InsufficientBalance
	default:
		record.Status = types.LegDone
		record.SubStatus = types.Completed
	}

	s.metrics.ObserveLeg(r.Code, string(record.Status))
	return record, err
}

// bridgeLeg returns the token decimals alongside the result so amounts can be formatted.
func (s *Scheduler) bridgeLeg(ctx context.Context, w *wallet.Wallet, r route.Route, record *types.LegRecord) (*bridge.LegResult, uint8, error) {
	address := w.Address()

	source, err := s.deps.Chains.Get(r.Source)
	if err != nil {
		return nil, 0, err
	}
	leg, err := route.Resolve(s.deps.Definitions, r)
	if err != nil {
		return nil, 0, err
	}
	record.Token = string(leg.Token.Symbol)

	decimals, err := source.Decimals(ctx, leg.TokenAddress)
	if err != nil {
		return nil, 0, errors.Wrapf(commonerrors.ErrTransientRPC, "failed to read decimals: %v", err)
	}

	ready, err := s.deps.Poller.Poll(ctx, source, r.Source, address, leg.TokenAddress, poller.DustThreshold(decimals), s.stopIfZero)
	if err != nil {
		return nil, 0, err
	}
	if !ready {
		return nil, decimals, errors.Wrapf(commonerrors.ErrNothingToBridge, "%s on %s", leg.Token.Symbol, r.Source)
	}

	quote, err := s.deps.Calculator.Compute(ctx, source, leg.TokenAddress, s.draw())
	if err != nil {
		return nil, 0, err
	}
	req := leg.Request(address, quote)

	s.logger.WithFields(logrus.Fields{
		"wallet": address,
		"route":  r.String(),
		"amount": req.HumanAmount,
		"token":  req.Token,
	}).Info("Trying to bridge")

	result, err := s.deps.Bridger.Bridge(ctx, w.Signer, source, req)
	return result, decimals, err
}

// skipFrom records every leg from position n on as skipped.
func (s *Scheduler) skipFrom(ctx context.Context, address string, plan Plan, n int, cause error) []*types.LegRecord {
	var skipped []*types.LegRecord
	now := s.now()
	for ; n < plan.legCount(); n++ {
		step := plan.Steps[n%len(plan.Steps)]
		record := &types.LegRecord{
			Wallet:      address,
			Route:       step.Route.Code,
			Source:      step.Route.Source,
			Destination: step.Route.Destination,
			Status:      types.LegSkipped,
			SubStatus:   Classify(cause),
			Error:       cause.Error(),
			Repetition:  n/len(plan.Steps) + 1,
			LegIndex:    n % len(plan.Steps),
			StartedAt:   now,
			FinishedAt:  now,
		}
		skipped = append(skipped, record)
		s.metrics.ObserveLeg(step.Route.Code, string(record.Status))
	}
	s.record(ctx, skipped...)
	return skipped
}

// record hands finished legs to every recorder. A failing recorder never fails the leg.
// Recorders share a budget of recordTTL, cut down to recordWait once ctx is cancelled,
// so a stalled recorder cannot hold a wallet past an interrupt.
func (s *Scheduler) record(ctx context.Context, records ...*types.LegRecord) {
	if len(records) == 0 || len(s.deps.Recorders) == 0 {
		return
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.recordTTL)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		grace := time.NewTimer(s.recordWait)
		defer grace.Stop()
		select {
		case <-grace.C:
			cancel()
		case <-rctx.Done():
		}
	})
	defer stop()

	for _, record := range records {
		for _, r := range s.deps.Recorders {
			if err := r.RecordLeg(rctx, record); err != nil {
				s.logger.WithFields(logrus.Fields{
					"wallet": record.Wallet,
					"route":  record.Route,
				}).WithError(err).Warn("Failed to record leg")
			}
		}
	}
}

// Classify maps a leg error onto its sub-status.
func Classify(err error) types.SubStatus {
	switch {
	case err == nil:
		return types.Completed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.Cancelled
	case errors.Is(err, commonerrors.ErrApprovalFailed):
		return types.InsufficientAllowance
	case errors.Is(err, commonerrors.ErrNothingToBridge), errors.Is(err, commonerrors.ErrPollTimeout):
		return types.NothingToBridge
	case errors.Is(err, commonerrors.ErrValidationRejected):
		return types.ValidationRejected
	case errors.Is(err, commonerrors.ErrBroadcastFailed):
		return types.BroadcastFailed
	case errors.Is(err, commonerrors.ErrTransientRPC), errors.Is(err, commonerrors.ErrChainNotFound),
		errors.Is(err, commonerrors.ErrReceiptWait):
		return types.ChainNotAvailable
	default:
		return types.UnknownError
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
