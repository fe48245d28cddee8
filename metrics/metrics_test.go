package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordsLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m.ObserveLeg("pa", "DONE")
	m.ObserveLeg("pa", "DONE")
	m.ObserveLeg("ab", "FAILED")
	m.ObserveTransaction("polygon", "swap", "DONE")
	m.SetChainUp("bsc", true)
	m.SetChainUp("fantom", false)

	if got := testutil.ToFloat64(m.legs.WithLabelValues("pa", "DONE")); got != 2 {
		t.Errorf("legs pa/DONE = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.legs.WithLabelValues("ab", "FAILED")); got != 1 {
		t.Errorf("legs ab/FAILED = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.transactions.WithLabelValues("polygon", "swap", "DONE")); got != 1 {
		t.Errorf("transactions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.chainUp.WithLabelValues("bsc")); got != 1 {
		t.Errorf("chain_up bsc = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.chainUp.WithLabelValues("fantom")); got != 0 {
		t.Errorf("chain_up fantom = %v, want 0", got)
	}
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatal("second New on the same registry should fail")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveLeg("pa", "DONE")
	m.ObservePoll("polygon")
	m.ObserveRetry("polygon", "eth_call")
	m.SetChainUp("polygon", true)
	m.SetTokenBalance("polygon", "0x1", "USDC", 1)
}
