package models

// StatusBucket is one status/count pair in a statistics payload. Status is
// the literal status string, or "null" for orders with no status.
type StatusBucket struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// OrderStatistics is the aggregate payload consumed by dashboards.
//
// The global variant always enumerates all five statuses plus the null
// bucket, zero-filled, so the shape is stable regardless of data. The
// per-manager variant lists only buckets that occur.
type OrderStatistics struct {
	TotalCount int            `json:"total_count"`
	Statuses   []StatusBucket `json:"statuses"`
}

// StatusCount is a raw aggregation row read from the store. A nil Status
// bucket holds orders whose status is unset.
type StatusCount struct {
	Status *string `db:"status"`
	Count  int     `db:"count"`
}
