package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Lease attempts per set, result is "acquired" or "unavailable".
	Leases *prometheus.CounterVec

	// Classified remote task results.
	TaskOutcomes *prometheus.CounterVec

	LoginFailures prometheus.Counter

	AccountsQuarantined prometheus.Counter

	// 0 closed, 1 half-open, 2 open.
	BreakerState *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg. A nil reg gets a private
// registry that nothing scrapes.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Leases: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pa_leases_total",
			Help: "Total number of account lease attempts.",
		}, []string{"set", "result"}),

		TaskOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pa_task_outcomes_total",
			Help: "Remote task outcomes by call family and kind.",
		}, []string{"family", "kind"}),

		LoginFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pa_login_failures_total",
			Help: "Failed login attempts.",
		}),

		AccountsQuarantined: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pa_accounts_quarantined_total",
			Help: "Accounts withdrawn from scheduling after a challenge.",
		}),

		BreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "pa_breaker_state",
			Help: "Current state of the per-account circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"account"}),
	}
}
