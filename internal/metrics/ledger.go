package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records stock movements committed and rejected by the inventory service.
type LedgerMetrics struct {
	movements *prometheus.CounterVec
	units     *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	conflicts prometheus.Counter
	duration  prometheus.Histogram
	cache     *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer. A nil registerer
// yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_movements_total",
		Help: "Committed stock movements by type.",
	}, []string{"type"})
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_movement_units_total",
		Help: "Units moved by committed stock movements, by type.",
	}, []string{"type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_movements_rejected_total",
		Help: "Stock movements refused, by error code.",
	}, []string{"reason"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_version_conflicts_total",
		Help: "Optimistic version conflicts hit while writing product quantity.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_movement_duration_seconds",
		Help:    "Time from lock request to commit for a stock movement.",
		Buckets: prometheus.DefBuckets,
	})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_report_cache_total",
		Help: "Dashboard cache lookups by result.",
	}, []string{"result"})
	reg.MustRegister(movements, units, rejected, conflicts, duration, cache)
	return &LedgerMetrics{
		movements: movements,
		units:     units,
		rejected:  rejected,
		conflicts: conflicts,
		duration:  duration,
		cache:     cache,
	}
}

// ObserveMovement counts a committed movement.
func (m *LedgerMetrics) ObserveMovement(txType string, quantity int, took time.Duration) {
	if m == nil || m.movements == nil {
		return
	}
	label := normalizeLabel(txType)
	m.movements.WithLabelValues(label).Inc()
	m.units.WithLabelValues(label).Add(float64(quantity))
	m.duration.Observe(took.Seconds())
}

func (m *LedgerMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *LedgerMetrics) IncConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *LedgerMetrics) IncCache(hit bool) {
	if m == nil || m.cache == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
