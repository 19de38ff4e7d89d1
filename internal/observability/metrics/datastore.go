package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for datastore operations
type DatastoreMetrics struct {
	// Database operation metrics
	dbOperationsTotal      *prometheus.CounterVec
	dbOperationDuration    *prometheus.HistogramVec
	dbOperationErrorsTotal *prometheus.CounterVec

	// Connection pool
	dbConnectionsActiveGauge prometheus.Gauge
	dbConnectionsIdleGauge   prometheus.Gauge
	dbConnectionsMaxGauge    prometheus.Gauge

	// Catalog cache
	cacheOperationsTotal *prometheus.CounterVec
	cacheSizeGauge       prometheus.Gauge

	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry prometheus.Registerer) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "table", "status"},
	)

	m.dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_db_operation_duration_seconds",
			Help:    "Time taken for database operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount15),
		},
		[]string{"operation", "table"},
	)

	m.dbOperationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	m.dbConnectionsActiveGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "datastore_db_connections_active",
		Help: "Number of active database connections",
	})

	m.dbConnectionsIdleGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "datastore_db_connections_idle",
		Help: "Number of idle database connections",
	})

	m.dbConnectionsMaxGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "datastore_db_connections_max",
		Help: "Maximum number of database connections",
	})

	m.cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_cache_operations_total",
			Help: "Total number of catalog cache lookups",
		},
		[]string{"cache_type", "operation", "result"}, // result: hit, miss, error
	)

	m.cacheSizeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "datastore_cache_size_entries",
		Help: "Current number of entries in the catalog cache",
	})

	m.collectors = []prometheus.Collector{
		m.dbOperationsTotal,
		m.dbOperationDuration,
		m.dbOperationErrorsTotal,
		m.dbConnectionsActiveGauge,
		m.dbConnectionsIdleGauge,
		m.dbConnectionsMaxGauge,
		m.cacheOperationsTotal,
		m.cacheSizeGauge,
	}
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// UpdateConnectionMetrics updates connection pool gauges.
func (m *DatastoreMetrics) UpdateConnectionMetrics(active, idle, maxConn int) {
	m.dbConnectionsActiveGauge.Set(float64(active))
	m.dbConnectionsIdleGauge.Set(float64(idle))
	m.dbConnectionsMaxGauge.Set(float64(maxConn))
}

// UpdateCacheSize sets the catalog cache entry count.
func (m *DatastoreMetrics) UpdateCacheSize(size int) {
	m.cacheSizeGauge.Set(float64(size))
}

// parseTableFromOperation splits "db_query:annotations" into operation and
// table; without a table the table is "unknown".
func parseTableFromOperation(operation string) (op, table string) {
	parts := strings.SplitN(operation, ":", SplitPartsCount)
	if len(parts) == SplitPartsCount {
		return parts[0], parts[1]
	}
	return operation, "unknown"
}

// RecordOperation implements the Recorder interface.
// Database operations use the "operation:table" form.
func (m *DatastoreMetrics) RecordOperation(operation, status string) {
	op, table := parseTableFromOperation(operation)
	switch op {
	case OpDbQuery, OpDbInsert, OpDbUpdate, OpDbDelete:
		m.dbOperationsTotal.WithLabelValues(op, table, status).Inc()
	case OpCacheGet:
		m.cacheOperationsTotal.WithLabelValues(LabelCatalog, op, status).Inc()
	}
}

// RecordDuration implements the Recorder interface.
func (m *DatastoreMetrics) RecordDuration(operation string, seconds float64) {
	op, table := parseTableFromOperation(operation)
	switch op {
	case OpDbQuery, OpDbInsert, OpDbUpdate, OpDbDelete:
		m.dbOperationDuration.WithLabelValues(op, table).Observe(seconds)
	}
}

// RecordError implements the Recorder interface.
func (m *DatastoreMetrics) RecordError(operation, errorType string) {
	op, table := parseTableFromOperation(operation)
	switch op {
	case OpDbQuery, OpDbInsert, OpDbUpdate, OpDbDelete:
		m.dbOperationErrorsTotal.WithLabelValues(op, table, errorType).Inc()
		m.dbOperationsTotal.WithLabelValues(op, table, StatusError).Inc()
	case OpCacheGet:
		m.cacheOperationsTotal.WithLabelValues(LabelCatalog, op, StatusError).Inc()
	}
}
