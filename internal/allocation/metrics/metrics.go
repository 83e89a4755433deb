package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the allocation module.
type Metrics struct {
	CardsAssigned prometheus.Counter
	BatchDuration prometheus.Histogram
	AutoDuration  prometheus.Histogram
}

// New creates and registers all allocation metrics.
func New() *Metrics {
	return &Metrics{
		CardsAssigned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_cards_assigned_total",
			Help: "Total number of card numbers assigned to members",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tessera_assign_batch_duration_seconds",
			Help:    "Duration of batch card assignment transactions",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		AutoDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tessera_assign_auto_duration_seconds",
			Help:    "Duration of automatic card assignment transactions",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// AddCardsAssigned records n successful card assignments.
func (m *Metrics) AddCardsAssigned(n int) {
	m.CardsAssigned.Add(float64(n))
}

// ObserveBatch records the duration of a batch assignment.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveBatch(start time.Time) {
	m.BatchDuration.Observe(time.Since(start).Seconds())
}

// ObserveAuto records the duration of an automatic assignment.
func (m *Metrics) ObserveAuto(start time.Time) {
	m.AutoDuration.Observe(time.Since(start).Seconds())
}
