// Package balances takes a snapshot of bridge-token balances across the wallet fleet.
package balances

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ClipFinance/stargate-bridger/amount"
	"github.com/ClipFinance/stargate-bridger/chainmanager"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ClipFinance/stargate-bridger/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ChainSource hands out connected chains.
type ChainSource interface {
	Get(name types.ChainName) (types.Chain, error)
}

// Sink receives every finished report.
type Sink interface {
	SetBalances(entries []types.BalanceEntry)
}

// Reporter reads balances concurrently.
type Reporter struct {
	chains      ChainSource
	defs        *chainmanager.Definitions
	concurrency int
	dust        *big.Rat
	sink        Sink
	logger      *logrus.Logger
	metrics     *metrics.Metrics
}

// NewReporter creates a reporter.
//
// Parameters:
// - chains: the connected chains.
// - defs: the chain and token table.
// - concurrency: the number of balance reads in flight.
// - dust: non-zero balances below this many whole tokens are flagged as dust.
// - sink: receives each report, may be nil.
// - logger: the logger for report lines.
// - m: metrics sink, may be nil.
//
// Returns:
// - *Reporter: the reporter.
func NewReporter(chains ChainSource, defs *chainmanager.Definitions, concurrency int, dust float64, sink Sink, logger *logrus.Logger, m *metrics.Metrics) *Reporter {
	if concurrency < 1 {
		concurrency = 1
	}
	d, _ := new(big.Rat).SetString(big.NewFloat(dust).Text('f', -1))
	if d == nil {
		d = big.NewRat(1, 100)
	}
	return &Reporter{
		chains:      chains,
		defs:        defs,
		concurrency: concurrency,
		dust:        d,
		sink:        sink,
		logger:      logger,
		metrics:     m,
	}
}

// Report reads the bridge-token balance of every wallet on every chain. A failed read is kept
// in its entry and never aborts the report.
//
// Parameters:
// - ctx: the context for the reads.
// - wallets: the wallet addresses.
// - chains: the chains to read.
//
// Returns:
// - []types.BalanceEntry: one entry per wallet and chain, ordered by wallet then chain.
// - error: the context error if the report was interrupted.
func (r *Reporter) Report(ctx context.Context, wallets []string, chains []types.ChainName) ([]types.BalanceEntry, error) {
	entries := make([]types.BalanceEntry, 0, len(wallets)*len(chains))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, w := range wallets {
		for _, c := range chains {
			w, c := w, c
			g.Go(func() error {
				entry := r.read(gctx, w, c)
				mu.Lock()
				entries = append(entries, entry)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order := make(map[string]int, len(wallets))
	for i, w := range wallets {
		order[w] = i
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Wallet != entries[j].Wallet {
			return order[entries[i].Wallet] < order[entries[j].Wallet]
		}
		return entries[i].Chain < entries[j].Chain
	})

	for _, e := range entries {
		log := r.logger.WithFields(logrus.Fields{"wallet": e.Wallet, "chain": e.Chain, "token": e.Token})
		if e.Error != "" {
			log.WithField("error", e.Error).Warn("Balance unavailable")
			continue
		}
		human := e.Human
		if e.Dust {
			human = "DUST"
		}
		log.WithField("balance", human).Info("Balance")
	}

	if r.sink != nil {
		r.sink.SetBalances(entries)
	}
	return entries, nil
}

func (r *Reporter) read(ctx context.Context, wallet string, name types.ChainName) types.BalanceEntry {
	entry := types.BalanceEntry{Wallet: wallet, Chain: name, Checked: time.Now()}

	fail := func(err error) types.BalanceEntry {
		entry.Error = err.Error()
		return entry
	}

	token, addr, err := r.defs.BridgeToken(name)
	if err != nil {
		return fail(err)
	}
	entry.Token = string(token.Symbol)

	chain, err := r.chains.Get(name)
	if err != nil {
		return fail(err)
	}
	if symbol, err := chain.Symbol(ctx, addr); err == nil && symbol != "" {
		entry.Token = symbol
	}

	decimals, err := chain.Decimals(ctx, addr)
	if err != nil {
		return fail(errors.Wrap(err, "failed to read decimals"))
	}
	balance, err := chain.BalanceOf(ctx, addr, wallet)
	if err != nil {
		return fail(errors.Wrap(err, "failed to read balance"))
	}

	entry.Raw = balance.String()
	entry.Human = amount.FromSmallestUnit(balance, decimals)
	human := new(big.Rat).SetFrac(balance, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	entry.Dust = balance.Sign() > 0 && human.Cmp(r.dust) < 0

	r.metrics.SetTokenBalance(name.String(), wallet, entry.Token, amount.ToFloat(balance, decimals))
	return entry
}
