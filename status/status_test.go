package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ClipFinance/stargate-bridger/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	walletA = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	walletB = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestStoreKeepsNewestLegs(t *testing.T) {
	s := NewStore(2)
	for _, code := range []string{"pa", "ab", "bp"} {
		if err := s.RecordLeg(context.Background(), &types.LegRecord{Wallet: walletA, Route: code}); err != nil {
			t.Fatalf("RecordLeg: %v", err)
		}
	}

	legs := s.Legs()
	if len(legs) != 2 || legs[0].Route != "ab" || legs[1].Route != "bp" {
		t.Errorf("legs = %+v", legs)
	}
}

func TestStoreCopiesRecords(t *testing.T) {
	s := NewStore(0)
	rec := &types.LegRecord{Wallet: walletA, Route: "pa"}
	_ = s.RecordLeg(context.Background(), rec)
	rec.Route = "changed"

	if got := s.Legs()[0].Route; got != "pa" {
		t.Errorf("stored route = %s", got)
	}
}

func newTestRouter(t *testing.T) (http.Handler, *Store) {
	t.Helper()
	store := NewStore(0)
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	m.ObserveLeg("pa", "DONE")

	_ = store.RecordLeg(context.Background(), &types.LegRecord{Wallet: walletA, Route: "pa", Status: types.LegDone})
	_ = store.RecordLeg(context.Background(), &types.LegRecord{Wallet: walletB, Route: "ab", Status: types.LegFailed})
	_ = store.RecordLeg(context.Background(), &types.LegRecord{Wallet: walletA, Route: "ab", Status: types.LegSkipped})
	store.SetBalances([]types.BalanceEntry{{Wallet: walletA, Chain: types.Polygon, Token: "USDC", Human: "7.25"}})

	return NewRouter(store, reg, []string{"*"}, quietLogger()), store
}

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterEndpoints(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := get(t, h, "/healthz", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body)
	}

	var legs []types.LegRecord
	rec = get(t, h, "/api/v1/legs", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &legs); err != nil || len(legs) != 3 {
		t.Errorf("legs = %v, %v", legs, err)
	}

	rec = get(t, h, "/api/v1/wallets/"+strings.ToLower(walletA)+"/legs", nil)
	legs = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &legs); err != nil || len(legs) != 2 {
		t.Errorf("wallet legs = %v, %v", legs, err)
	}

	rec = get(t, h, "/api/v1/wallets/0x0000000000000000000000000000000000000000/legs", nil)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("unknown wallet body = %s", rec.Body)
	}

	var balances []types.BalanceEntry
	rec = get(t, h, "/api/v1/balances", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &balances); err != nil || len(balances) != 1 || balances[0].Human != "7.25" {
		t.Errorf("balances = %v, %v", balances, err)
	}

	var routes []routeView
	rec = get(t, h, "/api/v1/routes", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &routes); err != nil || len(routes) != 36 {
		t.Fatalf("routes = %d, %v", len(routes), err)
	}
	if routes[0].Code != "pf" || routes[0].Refuel {
		t.Errorf("first route = %+v", routes[0])
	}

	rec = get(t, h, "/metrics", nil)
	if !strings.Contains(rec.Body.String(), "bridger_legs_total") {
		t.Errorf("metrics body missing legs counter")
	}
}

func TestRouterCORS(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := get(t, h, "/api/v1/legs", http.Header{"Origin": {"https://dashboard.example"}})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestCorsConfig(t *testing.T) {
	if cfg := corsConfig([]string{"https://a.example", "*"}); !cfg.AllowAllOrigins || len(cfg.AllowOrigins) != 0 {
		t.Errorf("wildcard config = %+v", cfg)
	}
	if cfg := corsConfig([]string{"https://a.example"}); cfg.AllowAllOrigins || len(cfg.AllowOrigins) != 1 {
		t.Errorf("explicit config = %+v", cfg)
	}
}

func TestServerShutsDownOnCancel(t *testing.T) {
	srv := NewServer(ServerOptions{Address: "127.0.0.1:0"}, NewStore(0), prometheus.NewRegistry(), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
