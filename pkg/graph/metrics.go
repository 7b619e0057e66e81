package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Statement kinds used as the "kind" label.
const (
	KindStatement   = "statement"
	KindTransaction = "transaction"
)

// Metrics counts and times statements sent to the graph server.
type Metrics struct {
	// StatementsTotal counts statements by kind and status (ok, error).
	StatementsTotal *prometheus.CounterVec
	// StatementDuration measures round trips by kind.
	StatementDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StatementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graph_statements_total",
				Help: "Total number of Cypher statements sent to the graph server",
			},
			[]string{"kind", "status"},
		),
		StatementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graph_statement_duration_seconds",
				Help:    "Duration of Cypher statements and transactions in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) observe(kind string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StatementsTotal.WithLabelValues(kind, status).Inc()
	m.StatementDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
