package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics counts what the assignment workflow does. It satisfies the
// session and lifecycle recorder interfaces as well as Recorder.
type EngineMetrics struct {
	togglesTotal         *prometheus.CounterVec
	stepChangesTotal     *prometheus.CounterVec
	autoAdvanceCancelled *prometheus.CounterVec
	associationsTotal    *prometheus.CounterVec
	lifecycleOpsTotal    *prometheus.CounterVec
	lifecycleOpDuration  *prometheus.HistogramVec
	operationErrorsTotal *prometheus.CounterVec
	genericOpsTotal      *prometheus.CounterVec
	genericOpDuration    *prometheus.HistogramVec

	collectors []prometheus.Collector
}

// NewEngineMetrics creates the engine collectors and registers them.
func NewEngineMetrics(registry prometheus.Registerer) (*EngineMetrics, error) {
	m := &EngineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	m.togglesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postit_toggles_total",
			Help: "Criterion and practice toggles by outcome",
		},
		[]string{"kind", "outcome"}, // outcome: assigned, cleared, rejected
	)

	m.stepChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postit_step_changes_total",
			Help: "Wizard step changes by event and source",
		},
		[]string{"event", "source"},
	)

	m.autoAdvanceCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postit_auto_advance_cancelled_total",
			Help: "Scheduled auto-advances that never fired",
		},
		[]string{"reason"},
	)

	m.associationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postit_activity_associations_total",
			Help: "Activity association inserts, releases and keeps",
		},
		[]string{"kind", "action"},
	)

	m.lifecycleOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postit_lifecycle_operations_total",
			Help: "Save and delete operations by status",
		},
		[]string{"operation", "status"},
	)

	m.lifecycleOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postit_lifecycle_operation_duration_seconds",
			Help:    "Time taken by save and delete including store round trips",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount15), // 0.1ms to ~1.6s
		},
		[]string{"operation"},
	)

	m.operationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postit_operation_errors_total",
			Help: "Errors by operation and error category",
		},
		[]string{"operation", "error_type"},
	)

	m.genericOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postit_operations_total",
			Help: "Operations recorded through the generic recorder",
		},
		[]string{"operation", "status"},
	)

	m.genericOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postit_operation_duration_seconds",
			Help:    "Durations recorded through the generic recorder",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"operation"},
	)

	m.collectors = []prometheus.Collector{
		m.togglesTotal,
		m.stepChangesTotal,
		m.autoAdvanceCancelled,
		m.associationsTotal,
		m.lifecycleOpsTotal,
		m.lifecycleOpDuration,
		m.operationErrorsTotal,
		m.genericOpsTotal,
		m.genericOpDuration,
	}
}

// Describe implements the Collector interface
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordToggle counts a toggle outcome.
func (m *EngineMetrics) RecordToggle(kind, outcome string) {
	m.togglesTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordStepChange counts a step change.
func (m *EngineMetrics) RecordStepChange(event, source string) {
	m.stepChangesTotal.WithLabelValues(event, source).Inc()
}

// RecordAutoAdvanceCancelled counts a cancelled auto-advance.
func (m *EngineMetrics) RecordAutoAdvanceCancelled(reason string) {
	m.autoAdvanceCancelled.WithLabelValues(reason).Inc()
}

// RecordAssociation counts an association insert, release or keep.
func (m *EngineMetrics) RecordAssociation(kind, action string) {
	m.associationsTotal.WithLabelValues(kind, action).Inc()
}

// RecordLifecycle counts a save or delete and observes its duration.
func (m *EngineMetrics) RecordLifecycle(operation, status string, seconds float64) {
	m.lifecycleOpsTotal.WithLabelValues(operation, status).Inc()
	m.lifecycleOpDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordOperation implements the Recorder interface.
func (m *EngineMetrics) RecordOperation(operation, status string) {
	switch operation {
	case OpSave, OpDelete:
		m.lifecycleOpsTotal.WithLabelValues(operation, status).Inc()
	default:
		m.genericOpsTotal.WithLabelValues(operation, status).Inc()
	}
}

// RecordDuration implements the Recorder interface.
func (m *EngineMetrics) RecordDuration(operation string, seconds float64) {
	switch operation {
	case OpSave, OpDelete:
		m.lifecycleOpDuration.WithLabelValues(operation).Observe(seconds)
	default:
		m.genericOpDuration.WithLabelValues(operation).Observe(seconds)
	}
}

// RecordError implements the Recorder interface.
func (m *EngineMetrics) RecordError(operation, errorType string) {
	m.operationErrorsTotal.WithLabelValues(operation, errorType).Inc()
}
