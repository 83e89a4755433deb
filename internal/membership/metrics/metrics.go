package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the membership lifecycle module.
type Metrics struct {
	MembershipsCreated  prometheus.Counter
	MembershipsExpired  prometheus.Counter
	MembershipsCanceled prometheus.Counter
	MembershipsRenewed  prometheus.Counter
	UnknownStates       prometheus.Counter
	SweepDuration       prometheus.Histogram
}

// New creates and registers all membership lifecycle metrics.
func New() *Metrics {
	return &Metrics{
		MembershipsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_memberships_created_total",
			Help: "Total number of membership rows created for payment",
		}),
		MembershipsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_memberships_expired_total",
			Help: "Total number of memberships retired by the expiration sweep",
		}),
		MembershipsCanceled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_memberships_canceled_total",
			Help: "Total number of memberships canceled by administrators",
		}),
		MembershipsRenewed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_memberships_renewed_total",
			Help: "Total number of memberships renewed with a conserved number",
		}),
		UnknownStates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_unknown_member_states_total",
			Help: "Total number of unrecognized membership fact combinations",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tessera_expiration_sweep_duration_seconds",
			Help:    "Duration of one full expiration sweep",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}
}

// ObserveSweep records the duration of one sweep run.
// Call with time.Now() captured at the start of the run.
func (m *Metrics) ObserveSweep(start time.Time) {
	m.SweepDuration.Observe(time.Since(start).Seconds())
}
