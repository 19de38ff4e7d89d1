package metrics

// Operation names accepted by the Recorder implementations.
const (
	// OpToggle represents a criterion or practice toggle.
	OpToggle = "toggle"
	// OpNavigate represents a wizard step change.
	OpNavigate = "navigate"
	// OpSave represents an annotation save with reconciliation.
	OpSave = "save"
	// OpDelete represents an annotation delete with orphan cleanup.
	OpDelete = "delete"

	// OpDbQuery represents database query operations.
	OpDbQuery = "db_query"
	// OpDbInsert represents database insert operations.
	OpDbInsert = "db_insert"
	// OpDbUpdate represents database update operations.
	OpDbUpdate = "db_update"
	// OpDbDelete represents database delete operations.
	OpDbDelete = "db_delete"
	// OpCacheGet represents catalog cache lookups.
	OpCacheGet = "cache_get"
)

// Label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPartial = "partial"

	ResultHit  = "hit"
	ResultMiss = "miss"

	LabelCatalog = "catalog"
)

// Histogram bucket configuration.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001

	// BucketFactor2 is the common exponential growth factor.
	BucketFactor2 = 2

	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)

// SplitPartsCount is the number of parts in an "operation:table" name.
const SplitPartsCount = 2
