package scheduler

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ClipFinance/stargate-bridger/amount"
	"github.com/ClipFinance/stargate-bridger/bridge"
	"github.com/ClipFinance/stargate-bridger/chainmanager"
	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ClipFinance/stargate-bridger/poller"
	"github.com/ClipFinance/stargate-bridger/route"
	"github.com/ClipFinance/stargate-bridger/wallet"
	"github.com/sirupsen/logrus"
)

const (
	keyA = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	keyB = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

type staticReader struct{ decimals uint8 }

func (r staticReader) Decimals(ctx context.Context, token string) (uint8, error) {
	return r.decimals, nil
}
func (r staticReader) Symbol(ctx context.Context, token string) (string, error) { return "USDC", nil }
func (r staticReader) BalanceOf(ctx context.Context, token, owner string) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}
func (r staticReader) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (r staticReader) NativeBalance(ctx context.Context, owner string) (*big.Int, error) {
	return big.NewInt(0), nil
}

// chainSet builds read-only chains through the chain wrapper.
type chainSet struct {
	defs *chainmanager.Definitions
}

func (c chainSet) Get(name types.ChainName) (types.Chain, error) {
	cfg, err := c.defs.Chain(name)
	if err != nil {
		return nil, err
	}
	decimals := uint8(6)
	if cfg.BridgeToken == types.USDT && name == types.BSC {
		decimals = 18
	}
	return chainmanager.NewChainBuilder(cfg).WithTokenReader(staticReader{decimals: decimals}).Build(), nil
}

type fakePoller struct {
	ready bool
	err   error
}

func (p fakePoller) Poll(ctx context.Context, reader poller.BalanceReader, chain types.ChainName, address, token string, dust *big.Int, stopIfZero bool) (bool, error) {
	return p.ready, p.err
}

type call struct {
	wallet string
	route  string
	start  time.Time
	end    time.Time
}

type fakeBridger struct {
	mu       sync.Mutex
	calls    []call
	work     time.Duration
	failOn   map[string]error // keyed by "wallet/source"
	pending  map[string]bool  // keyed by "wallet/source", swap broadcast without receipt
	panicFor string
}

func (b *fakeBridger) Bridge(ctx context.Context, w types.TxSigner, source types.Chain, req *types.TransferRequest) (*bridge.LegResult, error) {
	addr := w.Address().Hex()
	if addr == b.panicFor {
		panic("boom")
	}

	start := time.Now()
	if b.work > 0 {
		time.Sleep(b.work)
	}

	b.mu.Lock()
	b.calls = append(b.calls, call{wallet: addr, route: req.Source.String() + "-" + req.Destination.String(), start: start, end: time.Now()})
	err := b.failOn[addr+"/"+req.Source.String()]
	pending := b.pending[addr+"/"+req.Source.String()]
	b.mu.Unlock()

	result := &bridge.LegResult{AmountIn: req.AmountIn, AmountOutMin: req.AmountOutMin}
	if pending {
		result.Swap = &types.TransactionOutcome{Hash: "0xpending", Status: types.TxPending, ExplorerURL: "https://polygonscan.com/tx/0xpending"}
		result.LayerZeroURL = types.LayerZeroScanTxURL + "0xpending"
		return result, errors.Join(commonerrors.ErrReceiptWait, errors.New("connection refused"))
	}
	if err != nil {
		return result, err
	}
	result.Swap = &types.TransactionOutcome{Hash: "0xabc", Success: true, Status: types.TxDone}
	result.LayerZeroURL = types.LayerZeroScanTxURL + "0xabc"
	return result, nil
}

type memRecorder struct {
	mu      sync.Mutex
	records []*types.LegRecord
	err     error
}

func (r *memRecorder) RecordLeg(ctx context.Context, record *types.LegRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return r.err
}

// hangingRecorder blocks until its context ends.
type hangingRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *hangingRecorder) RecordLeg(ctx context.Context, record *types.LegRecord) error {
	<-ctx.Done()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, ctx.Err())
	return ctx.Err()
}

func loadWallets(t *testing.T, keys ...string) []*wallet.Wallet {
	t.Helper()
	wallets, err := wallet.Load(strings.NewReader(strings.Join(keys, "\n")))
	if err != nil {
		t.Fatal(err)
	}
	return wallets
}

func newTestScheduler(t *testing.T, b Bridger, p BalanceWaiter, recorders ...Recorder) *Scheduler {
	t.Helper()
	calc, _ := amount.NewCalculator(0.005)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	defs := chainmanager.DefaultDefinitions()

	s := New(Deps{
		Chains:      chainSet{defs: defs},
		Definitions: defs,
		Poller:      p,
		Bridger:     b,
		Calculator:  calc,
		Recorders:   recorders,
	}, Options{Amount: AmountRange{Min: 6, Max: 9, Precision: 2}}, logger, nil)
	s.jitterFor = func(*wallet.Wallet) time.Duration { return 0 }
	s.delayFor = func(DelayRange) time.Duration { return 0 }
	return s
}

func mustRoute(t *testing.T, code string) route.Route {
	t.Helper()
	r, err := route.Parse(code)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRunSingleRoute(t *testing.T) {
	b := &fakeBridger{}
	rec := &memRecorder{}
	s := newTestScheduler(t, b, fakePoller{ready: true}, rec)
	s.draw = func() *big.Rat { return big.NewRat(100, 1) }

	results := s.Run(context.Background(), loadWallets(t, keyA), SinglePlan(mustRoute(t, "pa")))
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}

	leg := results[0].Legs[0]
	if leg.Status != types.LegDone || leg.SubStatus != types.Completed {
		t.Errorf("leg status = %s/%s", leg.Status, leg.SubStatus)
	}
	if leg.AmountIn != "100" || leg.AmountOutMin != "99.5" || leg.Token != "USDC" {
		t.Errorf("leg amounts = %s / %s %s", leg.AmountIn, leg.AmountOutMin, leg.Token)
	}
	if leg.LayerZeroURL != "https://layerzeroscan.com/tx/0xabc" || leg.TxHash != "0xabc" {
		t.Errorf("leg links = %+v", leg)
	}
	if len(rec.records) != 1 {
		t.Errorf("recorded = %d", len(rec.records))
	}
}

func TestRunJitterDoesNotBlockSiblings(t *testing.T) {
	b := &fakeBridger{work: 20 * time.Millisecond}
	s := newTestScheduler(t, b, fakePoller{ready: true})
	s.sleep = sleepContext

	wallets := loadWallets(t, keyA, keyB)
	jitters := map[string]time.Duration{
		wallets[0].Address(): 5 * time.Millisecond,
		wallets[1].Address(): 150 * time.Millisecond,
	}
	s.jitterFor = func(w *wallet.Wallet) time.Duration { return jitters[w.Address()] }

	started := time.Now()
	results := s.Run(context.Background(), wallets, SinglePlan(mustRoute(t, "pa")))
	elapsed := time.Since(started)

	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("wallet %s: %v", r.Wallet, r.Err)
		}
	}

	var a, bCall call
	for _, c := range b.calls {
		if c.wallet == wallets[0].Address() {
			a = c
		} else {
			bCall = c
		}
	}
	if !a.end.Before(bCall.start) {
		t.Errorf("wallet A finished at %s, after B started at %s", a.end.Sub(started), bCall.start.Sub(started))
	}
	// Run in sequence the wallets would need 5+20+150+20 ms; run together B alone bounds the run.
	if elapsed > 150*time.Millisecond+20*time.Millisecond+100*time.Millisecond {
		t.Errorf("run took %s, wallets blocked each other", elapsed)
	}
}

func TestRunFailureSkipsRemainingLegsAndSparesSiblings(t *testing.T) {
	wallets := loadWallets(t, keyA, keyB)
	b := &fakeBridger{failOn: map[string]error{
		wallets[0].Address() + "/avalanche": commonerrors.ErrBroadcastFailed,
	}}
	rec := &memRecorder{}
	s := newTestScheduler(t, b, fakePoller{ready: true}, rec)

	plan := Plan{Name: "rotation", Steps: DefaultRotation(), Repeat: 2}
	results := s.Run(context.Background(), wallets, plan)

	failed, ok := results[0], results[1]
	if !errors.Is(failed.Err, commonerrors.ErrBroadcastFailed) {
		t.Fatalf("wallet A error = %v", failed.Err)
	}
	if len(failed.Legs) != 6 {
		t.Fatalf("wallet A legs = %d, want every planned leg recorded", len(failed.Legs))
	}
	if failed.Legs[0].Status != types.LegDone || failed.Legs[1].SubStatus != types.BroadcastFailed {
		t.Errorf("legs = %s, %s", failed.Legs[0].Status, failed.Legs[1].SubStatus)
	}
	for _, leg := range failed.Legs[2:] {
		if leg.Status != types.LegSkipped {
			t.Errorf("leg %d status = %s, want SKIPPED", leg.LegIndex, leg.Status)
		}
	}
	if failed.Legs[5].Repetition != 2 || failed.Legs[5].Route != "bp" {
		t.Errorf("last leg = %+v", failed.Legs[5])
	}

	if ok.Err != nil || len(ok.Legs) != 6 {
		t.Errorf("wallet B = %v with %d legs", ok.Err, len(ok.Legs))
	}
	if len(rec.records) != 12 {
		t.Errorf("recorded = %d, want 12", len(rec.records))
	}
}

func TestRunDelaysBetweenLegsOnly(t *testing.T) {
	b := &fakeBridger{}
	s := newTestScheduler(t, b, fakePoller{ready: true})

	var mu sync.Mutex
	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		slept = append(slept, d)
		return nil
	}
	s.jitterFor = func(*wallet.Wallet) time.Duration { return 7 * time.Second }
	s.delayFor = func(r DelayRange) time.Duration { return r.Min }

	results := s.Run(context.Background(), loadWallets(t, keyA), Plan{Steps: DefaultRotation(), Repeat: 1})
	if results[0].Err != nil {
		t.Fatal(results[0].Err)
	}

	want := []time.Duration{7 * time.Second, 1200 * time.Second, 1200 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("sleeps = %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %s, want %s", i, slept[i], want[i])
		}
	}
}

func TestRunNothingToBridge(t *testing.T) {
	b := &fakeBridger{}
	s := newTestScheduler(t, b, fakePoller{ready: false})

	results := s.Run(context.Background(), loadWallets(t, keyA), SinglePlan(mustRoute(t, "bp")))
	leg := results[0].Legs[0]
	if leg.Status != types.LegFailed || leg.SubStatus != types.NothingToBridge {
		t.Errorf("leg = %s/%s", leg.Status, leg.SubStatus)
	}
	if len(b.calls) != 0 {
		t.Error("bridge must not run without funds")
	}
}

func TestRunRecorderFailureIsIgnored(t *testing.T) {
	s := newTestScheduler(t, &fakeBridger{}, fakePoller{ready: true}, &memRecorder{err: errors.New("db down")})

	results := s.Run(context.Background(), loadWallets(t, keyA), SinglePlan(mustRoute(t, "pa")))
	if results[0].Err != nil || results[0].Legs[0].Status != types.LegDone {
		t.Errorf("result = %+v", results[0])
	}
}

func TestRunRecoversPanics(t *testing.T) {
	wallets := loadWallets(t, keyA, keyB)
	b := &fakeBridger{panicFor: wallets[0].Address()}
	s := newTestScheduler(t, b, fakePoller{ready: true})

	results := s.Run(context.Background(), wallets, SinglePlan(mustRoute(t, "pa")))
	if results[0].Err == nil || !strings.Contains(results[0].Err.Error(), "panicked") {
		t.Errorf("wallet A error = %v", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("wallet B error = %v", results[1].Err)
	}
}

func TestRunCancelledDuringJitter(t *testing.T) {
	s := newTestScheduler(t, &fakeBridger{}, fakePoller{ready: true})
	s.sleep = sleepContext
	s.jitterFor = func(*wallet.Wallet) time.Duration { return time.Hour }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := s.Run(ctx, loadWallets(t, keyA), SinglePlan(mustRoute(t, "pa")))
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("error = %v", results[0].Err)
	}
	if leg := results[0].Legs[0]; leg.Status != types.LegSkipped || leg.SubStatus != types.Cancelled {
		t.Errorf("leg = %s/%s", leg.Status, leg.SubStatus)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want types.SubStatus
	}{
		{nil, types.Completed},
		{context.Canceled, types.Cancelled},
		{commonerrors.ErrApprovalFailed, types.InsufficientAllowance},
		{commonerrors.ErrNothingToBridge, types.NothingToBridge},
		{commonerrors.ErrValidationRejected, types.ValidationRejected},
		{commonerrors.ErrBroadcastFailed, types.BroadcastFailed},
		{commonerrors.ErrTransientRPC, types.ChainNotAvailable},
		{errors.New("odd"), types.UnknownError},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestDelayRangeDraw(t *testing.T) {
	r := DelayRange{Min: time.Second, Max: 2 * time.Second}
	for i := 0; i < 100; i++ {
		if d := r.Draw(); d < r.Min || d > r.Max {
			t.Fatalf("Draw = %s outside range", d)
		}
	}
	if d := (DelayRange{Min: time.Second, Max: time.Second}).Draw(); d != time.Second {
		t.Errorf("degenerate Draw = %s", d)
	}
}

func TestRunRecordsHashOfSwapWithoutReceipt(t *testing.T) {
	wallets := loadWallets(t, keyA)
	b := &fakeBridger{pending: map[string]bool{wallets[0].Address() + "/polygon": true}}
	rec := &memRecorder{}
	s := newTestScheduler(t, b, fakePoller{ready: true}, rec)

	results := s.Run(context.Background(), wallets, Plan{Name: "two", Steps: []Step{{Route: mustRoute(t, "pa")}, {Route: mustRoute(t, "ab")}}, Repeat: 1})
	if !errors.Is(results[0].Err, commonerrors.ErrReceiptWait) {
		t.Fatalf("error = %v", results[0].Err)
	}

	leg := results[0].Legs[0]
	if leg.Status != types.LegFailed || leg.SubStatus != types.ChainNotAvailable {
		t.Errorf("leg = %s/%s", leg.Status, leg.SubStatus)
	}
	if leg.TxHash != "0xpending" || leg.ExplorerURL == "" || leg.LayerZeroURL != "https://layerzeroscan.com/tx/0xpending" {
		t.Errorf("leg links = %q %q %q", leg.TxHash, leg.ExplorerURL, leg.LayerZeroURL)
	}
	if len(rec.records) != 2 || rec.records[0].TxHash != "0xpending" {
		t.Errorf("recorded = %d", len(rec.records))
	}
}

func TestRunStalledRecorderDoesNotBlockInterrupt(t *testing.T) {
	rec := &hangingRecorder{}
	s := newTestScheduler(t, &fakeBridger{}, fakePoller{ready: true}, rec)
	s.recordWait = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	done := make(chan []WalletResult, 1)
	go func() { done <- s.Run(ctx, loadWallets(t, keyA, keyB), SinglePlan(mustRoute(t, "pa"))) }()

	select {
	case results := <-done:
		for _, res := range results {
			if res.Err != nil || res.Legs[0].Status != types.LegDone {
				t.Errorf("result = %+v", res)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) != 2 {
		t.Fatalf("recorder calls = %d, want 2", len(rec.errs))
	}
}

func TestRunRecorderTimeout(t *testing.T) {
	rec := &hangingRecorder{}
	s := newTestScheduler(t, &fakeBridger{}, fakePoller{ready: true}, rec)
	s.recordTTL = 20 * time.Millisecond

	start := time.Now()
	results := s.Run(context.Background(), loadWallets(t, keyA), SinglePlan(mustRoute(t, "pa")))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run took %s", elapsed)
	}
	if results[0].Err != nil || results[0].Legs[0].Status != types.LegDone {
		t.Errorf("result = %+v", results[0])
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], context.DeadlineExceeded) {
		t.Errorf("recorder errors = %v", rec.errs)
	}
}

func TestNewDefaultsRecorderTimeout(t *testing.T) {
	s := New(Deps{}, Options{}, logrus.New(), nil)
	if s.recordTTL != DefaultRecorderTimeout || s.recordWait != recordGrace {
		t.Errorf("record budget = %s, grace %s", s.recordTTL, s.recordWait)
	}
}
