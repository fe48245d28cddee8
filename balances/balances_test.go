package balances

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"

	"github.com/ClipFinance/stargate-bridger/chainmanager"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ClipFinance/stargate-bridger/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type mapReader struct {
	symbol   string
	decimals uint8
	balances map[string]*big.Int
	err      error
}

func (r mapReader) Decimals(ctx context.Context, token string) (uint8, error) { return r.decimals, nil }
func (r mapReader) Symbol(ctx context.Context, token string) (string, error)  { return r.symbol, nil }
func (r mapReader) BalanceOf(ctx context.Context, token, owner string) (*big.Int, error) {
	if r.err != nil {
		return nil, r.err
	}
	if b, ok := r.balances[owner]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}
func (r mapReader) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (r mapReader) NativeBalance(ctx context.Context, owner string) (*big.Int, error) {
	return big.NewInt(0), nil
}

type fixedChains map[types.ChainName]types.Chain

func (f fixedChains) Get(name types.ChainName) (types.Chain, error) {
	c, ok := f[name]
	if !ok {
		return nil, errors.New("chain not connected")
	}
	return c, nil
}

type captureSink struct {
	mu      sync.Mutex
	entries []types.BalanceEntry
}

func (s *captureSink) SetBalances(entries []types.BalanceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
}

func TestReport(t *testing.T) {
	defs := chainmanager.DefaultDefinitions()
	usdtBSC, _ := new(big.Int).SetString("12500000000000000000", 10)

	chains := fixedChains{
		types.Polygon: chainmanager.NewChainBuilder(defs.Chains[types.Polygon]).WithTokenReader(mapReader{
			symbol: "USDC", decimals: 6,
			balances: map[string]*big.Int{"0xA": big.NewInt(7_250_000), "0xB": big.NewInt(5_000)},
		}).Build(),
		types.BSC: chainmanager.NewChainBuilder(defs.Chains[types.BSC]).WithTokenReader(mapReader{
			symbol: "USDT", decimals: 18,
			balances: map[string]*big.Int{"0xA": usdtBSC},
		}).Build(),
		types.Base: chainmanager.NewChainBuilder(defs.Chains[types.Base]).WithTokenReader(mapReader{
			symbol: "USDbC", decimals: 6, err: errors.New("rpc down"),
		}).Build(),
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatal(err)
	}
	sink := &captureSink{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	r := NewReporter(chains, defs, 4, 0.01, sink, logger, m)
	entries, err := r.Report(context.Background(), []string{"0xA", "0xB"}, []types.ChainName{types.Polygon, types.BSC, types.Base})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(entries) != 6 || len(sink.entries) != 6 {
		t.Fatalf("entries = %d, sink = %d", len(entries), len(sink.entries))
	}

	byKey := map[string]types.BalanceEntry{}
	for _, e := range entries {
		byKey[e.Wallet+"/"+e.Chain.String()] = e
	}

	if e := byKey["0xA/polygon"]; e.Human != "7.25" || e.Dust || e.Token != "USDC" {
		t.Errorf("0xA polygon = %+v", e)
	}
	if e := byKey["0xB/polygon"]; !e.Dust || e.Human != "0.005" {
		t.Errorf("0xB polygon = %+v, want dust", e)
	}
	if e := byKey["0xB/bsc"]; e.Dust || e.Human != "0" {
		t.Errorf("zero balance must not be dust: %+v", e)
	}
	if e := byKey["0xA/bsc"]; e.Human != "12.5" || e.Token != "USDT" {
		t.Errorf("0xA bsc = %+v", e)
	}
	if e := byKey["0xA/base"]; e.Error == "" || e.Token != "USDbC" {
		t.Errorf("0xA base = %+v, want error entry", e)
	}

	if entries[0].Wallet != "0xA" || entries[5].Wallet != "0xB" {
		t.Errorf("entries not ordered by wallet: %s ... %s", entries[0].Wallet, entries[5].Wallet)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() != "bridger_token_balance" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["chain"] == "polygon" && labels["wallet"] == "0xA" {
				found = true
				if v := metric.GetGauge().GetValue(); v != 7.25 {
					t.Errorf("gauge = %v, want 7.25", v)
				}
			}
		}
	}
	if !found {
		t.Error("token_balance gauge not exported")
	}
}

func TestReportMissingChain(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r := NewReporter(fixedChains{}, chainmanager.DefaultDefinitions(), 1, 0.01, nil, logger, nil)

	entries, err := r.Report(context.Background(), []string{"0xA"}, []types.ChainName{types.Optimism})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Error == "" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestReportCancelled(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r := NewReporter(fixedChains{}, chainmanager.DefaultDefinitions(), 1, 0.01, nil, logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Report(ctx, []string{"0xA"}, []types.ChainName{types.Polygon}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v", err)
	}
}
