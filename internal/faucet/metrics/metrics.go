// Package metrics holds the Prometheus instruments for the faucet domain.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the faucet's Prometheus collectors.
type Metrics struct {
	ClaimsTotal          *prometheus.CounterVec
	DisbursementDuration prometheus.Histogram
	InFlightClaims       prometheus.Gauge
	GrantCommitFailures  prometheus.Counter
}

// New creates and registers all faucet metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		ClaimsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "faucetd_claims_total",
			Help: "Claim requests by terminal result reason",
		}, []string{"result"}),
		DisbursementDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "faucetd_disbursement_duration_seconds",
			Help:    "Wall time of disbursement execution from build to terminal outcome",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}),
		InFlightClaims: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "faucetd_claims_in_flight",
			Help: "Claims currently holding a beneficiary lock",
		}),
		GrantCommitFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "faucetd_grant_commit_failures_total",
			Help: "Confirmed payouts whose claim record write failed (rate limit is best-effort for these)",
		}),
	}
}

// ObserveClaim records a terminal claim result.
func (m *Metrics) ObserveClaim(result string) {
	if m == nil {
		return
	}
	m.ClaimsTotal.WithLabelValues(result).Inc()
}

// ObserveDisbursement records the duration of one executor run.
func (m *Metrics) ObserveDisbursement(d time.Duration) {
	if m == nil {
		return
	}
	m.DisbursementDuration.Observe(d.Seconds())
}
