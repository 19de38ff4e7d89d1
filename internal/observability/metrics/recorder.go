// Package metrics provides the Prometheus collectors for postit.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on it rather than on a concrete collector.
type Recorder interface {
	// RecordOperation records an operation with its status ("success", "error").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	RecordError(operation, errorType string)
}

// PoolRecorder receives database connection pool gauges.
type PoolRecorder interface {
	UpdateConnectionMetrics(active, idle, maxConn int)
}

// CacheSizeRecorder receives the number of cached entries.
type CacheSizeRecorder interface {
	UpdateCacheSize(size int)
}
