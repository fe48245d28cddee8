// Package metrics exposes Prometheus collectors for bridging runs.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bridger"

// Metrics groups the collectors of one process.
type Metrics struct {
	legs         *prometheus.CounterVec // Finished legs by route and status.
	transactions *prometheus.CounterVec // Submitted transactions by chain, kind and status.
	polls        *prometheus.CounterVec // Balance reads performed while waiting for funds.
	rpcRetries   *prometheus.CounterVec // Retried RPC reads by chain and method.
	chainUp      *prometheus.GaugeVec   // 1 when the chain endpoint answered the last health check.
	tokenBalance *prometheus.GaugeVec   // Last observed bridge-token balance in whole tokens.
}

// New creates the collectors and registers them.
//
// Parameters:
// - reg: the registry to register with, usually prometheus.DefaultRegisterer.
//
// Returns:
// - *Metrics: the collectors.
// - error: an error if a collector is already registered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		legs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "legs_total",
			Help:      "Bridging legs finished, by route and final status.",
		}, []string{"route", "status"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions submitted, by chain, kind and status.",
		}, []string{"chain", "kind", "status"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_polls_total",
			Help:      "Balance reads performed while waiting for funds.",
		}, []string{"chain"}),
		rpcRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_retries_total",
			Help:      "RPC read calls retried after a transient failure.",
		}, []string{"chain", "method"}),
		chainUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_up",
			Help:      "Whether the chain endpoint passed its last health check.",
		}, []string{"chain"}),
		tokenBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "token_balance",
			Help:      "Last observed bridge-token balance in whole tokens.",
		}, []string{"chain", "wallet", "token"}),
	}

	for _, c := range []prometheus.Collector{m.legs, m.transactions, m.polls, m.rpcRetries, m.chainUp, m.tokenBalance} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveLeg counts a finished leg.
func (m *Metrics) ObserveLeg(route, status string) {
	if m == nil {
		return
	}
	m.legs.WithLabelValues(route, status).Inc()
}

// ObserveTransaction counts a submitted transaction.
func (m *Metrics) ObserveTransaction(chain, kind, status string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(chain, kind, status).Inc()
}

// ObservePoll counts one balance read of the poller.
func (m *Metrics) ObservePoll(chain string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(chain).Inc()
}

// ObserveRetry counts one retried RPC read.
func (m *Metrics) ObserveRetry(chain, method string) {
	if m == nil {
		return
	}
	m.rpcRetries.WithLabelValues(chain, method).Inc()
}

// SetChainUp records the result of a health check.
func (m *Metrics) SetChainUp(chain string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.chainUp.WithLabelValues(chain).Set(v)
}

// SetTokenBalance records a balance snapshot entry.
func (m *Metrics) SetTokenBalance(chain, wallet, token string, value float64) {
	if m == nil {
		return
	}
	m.tokenBalance.WithLabelValues(chain, wallet, token).Set(value)
}
