package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one process. A nil *Metrics records nothing,
// so callers and tests that do not care can leave it out.
type Metrics struct {
	approvals            *prometheus.CounterVec
	allocations          *prometheus.CounterVec
	conflicts            *prometheus.CounterVec
	allocationDuration   prometheus.Histogram
	notificationFailures *prometheus.CounterVec
	released             *prometheus.CounterVec
	txRetries            prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		approvals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venueflow_approval_transitions_total",
				Help: "Approval transitions by recorded action",
			},
			[]string{"action"},
		),
		allocations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venueflow_allocation_attempts_total",
				Help: "Allocation attempts by outcome",
			},
			[]string{"outcome"},
		),
		conflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venueflow_allocation_conflicts_total",
				Help: "Allocation conflicts by kind",
			},
			[]string{"kind"},
		),
		allocationDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "venueflow_allocation_duration_seconds",
				Help:    "Time spent inside one allocation attempt",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		notificationFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venueflow_notification_failures_total",
				Help: "Notifications that could not be delivered",
			},
			[]string{"type"},
		),
		released: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venueflow_bookings_released_total",
				Help: "Bookings cancelled by housekeeping",
			},
			[]string{"reason", "kind"},
		),
		txRetries: f.NewCounter(
			prometheus.CounterOpts{
				Name: "venueflow_tx_retries_total",
				Help: "Serializable transactions re-run after a serialization failure",
			},
		),
	}
}

func (m *Metrics) ApprovalTransition(action string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(action).Inc()
}

func (m *Metrics) AllocationAttempt(success bool, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "succeeded"
	}
	m.allocations.WithLabelValues(outcome).Inc()
	m.allocationDuration.Observe(took.Seconds())
}

func (m *Metrics) Conflict(kind string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(kind).Inc()
}

func (m *Metrics) NotificationFailed(typ string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(typ).Inc()
}

// Released counts cancelled bookings; reason is "event_ended" or "provisional_expired".
func (m *Metrics) Released(reason string, venues, resources int) {
	if m == nil {
		return
	}
	m.released.WithLabelValues(reason, "venue").Add(float64(venues))
	m.released.WithLabelValues(reason, "resource").Add(float64(resources))
}

func (m *Metrics) TxRetry() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}
