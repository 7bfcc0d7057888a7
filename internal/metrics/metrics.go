// Package metrics exposes Prometheus instrumentation for oracle calls and
// pipeline outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reputexa/reputexa/internal/resilience"
)

var (
	OracleRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reputexa", Name: "oracle_requests_total", Help: "Outbound oracle calls."},
		[]string{"oracle", "op", "outcome"}, // outcome: ok|transient|permanent
	)
	OracleLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reputexa", Name: "oracle_request_duration_seconds",
			Help:    "Oracle call duration seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"oracle", "op"},
	)
	ReviewsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reputexa", Name: "reviews_processed_total", Help: "Reviews classified, by resulting status."},
		[]string{"status"},
	)
	Prospects = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reputexa", Name: "prospects_total", Help: "Sniper candidates, by outcome."},
		[]string{"outcome"}, // created|updated|skipped|failed
	)
	Dashboard = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "reputexa", Name: "dashboard", Help: "Latest dashboard snapshot values."},
		[]string{"stat"},
	)
)

// NewRegistry returns a registry holding the reputexa collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(OracleRequests, OracleLatency, ReviewsProcessed, Prospects, Dashboard)
	return reg
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Outcome labels err for the outcome dimension.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return resilience.ClassifyError(err)
}

// ObserveOracle records one oracle call.
func ObserveOracle(oracle, op string, err error, dur time.Duration) {
	OracleRequests.WithLabelValues(oracle, op, Outcome(err)).Inc()
	OracleLatency.WithLabelValues(oracle, op).Observe(dur.Seconds())
}

// ObserveReview records a review reaching status.
func ObserveReview(status string) {
	ReviewsProcessed.WithLabelValues(status).Inc()
}

// ObserveProspect records one sniper candidate outcome.
func ObserveProspect(outcome string) {
	Prospects.WithLabelValues(outcome).Inc()
}

// SetDashboard publishes a snapshot value.
func SetDashboard(stat string, v float64) {
	Dashboard.WithLabelValues(stat).Set(v)
}
