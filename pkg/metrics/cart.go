package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart store activity. A nil *CartMetrics is valid and
// records nothing.
type CartMetrics struct {
	mutations       *prometheus.CounterVec
	healed          *prometheus.CounterVec
	persistFailures prometheus.Counter
	reconciles      *prometheus.CounterVec
	reconcileTime   prometheus.Histogram
	lines           prometheus.Gauge
	units           prometheus.Gauge
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	m := &CartMetrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Applied cart mutations by operation.",
		}, []string{"op"}),
		healed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_items_dropped_total",
			Help: "Cart entries dropped while healing, by reason.",
		}, []string{"reason"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cart_persist_failures_total",
			Help: "Failed writes of the cart record.",
		}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_reconcile_total",
			Help: "Remote cart reconciliations by outcome.",
		}, []string{"outcome"}),
		reconcileTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cart_reconcile_duration_seconds",
			Help:    "Duration of remote cart reconciliations in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		lines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cart_line_items",
			Help: "Distinct line items in the cart.",
		}),
		units: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cart_units",
			Help: "Sum of quantities in the cart.",
		}),
	}
	reg.MustRegister(m.mutations, m.healed, m.persistFailures, m.reconciles, m.reconcileTime, m.lines, m.units)
	return m
}

func (m *CartMetrics) IncMutation(op string) {
	if m == nil || m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *CartMetrics) IncHealed(reason string) {
	if m == nil || m.healed == nil {
		return
	}
	m.healed.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *CartMetrics) IncPersistFailure() {
	if m == nil || m.persistFailures == nil {
		return
	}
	m.persistFailures.Inc()
}

// ObserveReconcile counts one reconciliation and records how long it took.
func (m *CartMetrics) ObserveReconcile(outcome string, duration time.Duration) {
	if m == nil || m.reconciles == nil {
		return
	}
	m.reconciles.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.reconcileTime.Observe(duration.Seconds())
}

// SetItems publishes the current cart size.
func (m *CartMetrics) SetItems(lines, units int) {
	if m == nil || m.lines == nil {
		return
	}
	m.lines.Set(float64(lines))
	m.units.Set(float64(units))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
