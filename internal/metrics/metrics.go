package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moltrades"

// Metrics owns a private registry. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry      *prometheus.Registry
	quoteRequests *prometheus.CounterVec
	quoteLatency  *prometheus.HistogramVec
	transactions  *prometheus.CounterVec
	executions    *prometheus.CounterVec
	pollCycles    prometheus.Counter
	pollOutcomes  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		quoteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_requests_total",
				Help:      "Route quote requests by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		quoteLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "quote_request_duration_seconds",
				Help:      "Route quote request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Transactions by step and outcome",
			},
			[]string{"step", "outcome"},
		),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Execution attempts by resulting status",
			},
			[]string{"status"},
		),
		pollCycles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_poll_cycles_total",
				Help:      "Bridge status queries issued",
			},
		),
		pollOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_poll_outcomes_total",
				Help:      "Bridge status polls by final status",
			},
			[]string{"status"},
		),
	}
	m.registry.MustRegister(
		m.quoteRequests,
		m.quoteLatency,
		m.transactions,
		m.executions,
		m.pollCycles,
		m.pollOutcomes,
	)
	return m
}

func (m *Metrics) ObserveQuote(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.quoteRequests.WithLabelValues(kind, outcome).Inc()
	m.quoteLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) IncTransaction(step, outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) IncExecution(status string) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncPollCycle() {
	if m == nil {
		return
	}
	m.pollCycles.Inc()
}

func (m *Metrics) IncPollOutcome(status string) {
	if m == nil {
		return
	}
	m.pollOutcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
