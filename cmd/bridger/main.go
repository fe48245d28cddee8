// Command bridger moves stablecoins between chains through the Stargate router for a fleet of wallets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ClipFinance/stargate-bridger/amount"
	"github.com/ClipFinance/stargate-bridger/balances"
	"github.com/ClipFinance/stargate-bridger/bridge"
	"github.com/ClipFinance/stargate-bridger/chainmanager"
	"github.com/ClipFinance/stargate-bridger/chains"
	"github.com/ClipFinance/stargate-bridger/chains/evm"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ClipFinance/stargate-bridger/config"
	"github.com/ClipFinance/stargate-bridger/events"
	"github.com/ClipFinance/stargate-bridger/journal"
	"github.com/ClipFinance/stargate-bridger/logger"
	"github.com/ClipFinance/stargate-bridger/metrics"
	"github.com/ClipFinance/stargate-bridger/poller"
	"github.com/ClipFinance/stargate-bridger/refuel"
	"github.com/ClipFinance/stargate-bridger/route"
	"github.com/ClipFinance/stargate-bridger/scheduler"
	"github.com/ClipFinance/stargate-bridger/status"
	"github.com/ClipFinance/stargate-bridger/wallet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML configuration")
	flag.Parse()

	inv, err := parseArgs(flag.Args())
	if err != nil {
		fmt.Fprint(os.Stderr, usage(inv.mode, err))
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitError
	}

	log, closeLog, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return exitError
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Startup failed")
		return exitError
	}
	defer a.close()

	if err := a.run(ctx, inv); err != nil {
		log.WithError(err).Error("Run failed")
		return exitError
	}
	return exitOK
}

// app holds the wiring of one process.
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	defs     *chainmanager.Definitions
	registry *chainmanager.Registry
	wallets  []*wallet.Wallet
	store    *status.Store
	journal  *journal.Journal
	events   *events.Publisher
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*app, error) {
	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}

	defs, err := cfg.Definitions()
	if err != nil {
		return nil, err
	}

	wallets, err := wallet.LoadFile(cfg.Wallets.KeysFile, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		defs:     defs,
		registry: chainmanager.NewChainRegistry(chains.NewChainFactory(evm.Options{Metrics: m}), log),
		wallets:  wallets,
		store:    status.NewStore(status.DefaultMaxLegs),
	}

	if cfg.Journal.DSN != "" {
		a.journal, err = journal.Open(ctx, cfg.Journal.DSN)
		if err != nil {
			return nil, err
		}
		log.Info("Leg journal enabled")
	}
	if len(cfg.Kafka.Brokers) > 0 {
		a.events = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.BatchTimeout, log)
		log.WithField("topic", cfg.Kafka.Topic).Info("Leg events enabled")
	}

	return a, nil
}

func (a *app) close() {
	a.registry.CloseAll()
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close journal")
		}
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close event publisher")
		}
	}
}

func (a *app) run(ctx context.Context, inv invocation) error {
	var serverDone chan error
	if a.cfg.Server.Enabled {
		serverDone = make(chan error, 1)
		srv := status.NewServer(status.ServerOptions{
			Address:         a.cfg.Server.Address,
			AllowedOrigins:  a.cfg.Server.AllowedOrigins,
			ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		}, a.store, prometheus.DefaultGatherer, a.logger)
		go func() { serverDone <- srv.Run(ctx) }()
	}

	if err := a.dispatch(ctx, inv); err != nil {
		return err
	}

	// The status API stays up after the run until the operator interrupts.
	if serverDone != nil {
		a.logger.Info("Run finished, status server keeps serving until interrupted")
		return <-serverDone
	}
	return nil
}

func (a *app) dispatch(ctx context.Context, inv invocation) error {
	switch inv.mode {
	case ModeBridge:
		plan := scheduler.SinglePlan(inv.route)
		plan.Repeat = a.cfg.Bridge.Repeat
		return a.runPlan(ctx, plan)

	case ModeRotation:
		plan, err := a.cfg.RotationPlan()
		if err != nil {
			return err
		}
		a.connect(ctx, planChains(plan))
		if _, err := a.reporter().Report(ctx, a.addresses(), planChains(plan)); err != nil {
			return err
		}
		return a.runPlan(ctx, plan)

	case ModeBalances:
		a.connect(ctx, types.AllChainNames)
		_, err := a.reporter().Report(ctx, a.addresses(), types.AllChainNames)
		return err

	case ModeRefuel:
		return a.runRefuel(ctx, inv.route)
	}
	return nil
}

// connect registers every chain in names. A chain that cannot be reached is logged and skipped,
// legs on it fail with CHAIN_NOT_AVAILABLE.
func (a *app) connect(ctx context.Context, names []types.ChainName) {
	for _, name := range names {
		if _, err := a.registry.Get(name); err == nil {
			continue
		}
		cfg, err := a.defs.Chain(name)
		if err != nil {
			a.logger.WithField("chain", name).WithError(err).Error("Unknown chain")
			continue
		}
		if err := a.registry.Add(ctx, cfg); err != nil {
			a.logger.WithField("chain", name).WithError(err).Error("Failed to connect chain")
		}
	}
}

func (a *app) reporter() *balances.Reporter {
	return balances.NewReporter(a.registry, a.defs, a.cfg.Balances.Concurrency, a.cfg.Balances.Dust, a.store, a.logger, a.metrics)
}

func (a *app) addresses() []string {
	out := make([]string, 0, len(a.wallets))
	for _, w := range a.wallets {
		out = append(out, w.Address())
	}
	return out
}

func (a *app) recorders() []scheduler.Recorder {
	recorders := []scheduler.Recorder{a.store}
	if a.journal != nil {
		recorders = append(recorders, a.journal)
	}
	if a.events != nil {
		recorders = append(recorders, a.events)
	}
	return recorders
}

func (a *app) runPlan(ctx context.Context, plan scheduler.Plan) error {
	a.connect(ctx, planChains(plan))

	calc, err := amount.NewCalculator(a.cfg.Bridge.Slippage)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Deps{
		Chains:      a.registry,
		Definitions: a.defs,
		Poller: poller.New(poller.Options{
			Interval: a.cfg.Poller.Interval,
			Timeout:  a.cfg.Poller.Timeout,
			LogEvery: a.cfg.Poller.LogEvery,
		}, a.logger, a.metrics),
		Bridger: bridge.NewOrchestrator(calc, bridge.Options{
			ApproveGasLimit: a.cfg.Bridge.ApproveGasLimit,
			SettleDelay:     a.cfg.Bridge.SettleDelay,
		}, a.logger),
		Calculator: calc,
		Recorders:  a.recorders(),
	}, a.cfg.SchedulerOptions(), a.logger, a.metrics)

	a.logger.WithFields(logrus.Fields{
		"plan":    plan.Name,
		"wallets": len(a.wallets),
		"repeat":  plan.Repeat,
	}).Info("Starting run")

	failed := 0
	for _, res := range sched.Run(ctx, a.wallets, plan) {
		if res.Err != nil {
			failed++
			a.logger.WithField("wallet", res.Wallet).WithError(res.Err).Warn("Wallet stopped early")
		}
	}
	a.logger.WithFields(logrus.Fields{
		"plan":   plan.Name,
		"failed": failed,
		"total":  len(a.wallets),
	}).Info("Run finished")
	return nil
}

func (a *app) runRefuel(ctx context.Context, r route.Route) error {
	a.connect(ctx, []types.ChainName{r.Source, r.Destination})

	client := refuel.NewClient(refuel.ClientOptions{
		LimitsURL:      a.cfg.Refuel.LimitsURL,
		PriceURL:       a.cfg.Refuel.PriceURL,
		CacheTTL:       a.cfg.Refuel.CacheTTL,
		RequestTimeout: a.cfg.Refuel.RequestTimeout,
		RateLimit:      a.cfg.Refuel.RateLimit,
	}, a.logger)
	svc := refuel.NewService(client, a.registry, a.cfg.Refuel.USDAmount, a.logger)

	for _, res := range svc.RefuelAll(ctx, a.wallets, r) {
		if res.Err != nil {
			a.logger.WithFields(logrus.Fields{"wallet": res.Wallet, "route": r.Code}).WithError(res.Err).Error("Refuel failed")
		}
	}
	return nil
}

// planChains lists the chains a plan touches, in first-use order.
func planChains(plan scheduler.Plan) []types.ChainName {
	seen := make(map[types.ChainName]bool)
	var names []types.ChainName
	for _, step := range plan.Steps {
		for _, name := range []types.ChainName{step.Route.Source, step.Route.Destination} {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
