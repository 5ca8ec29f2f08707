package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskLowStockScan walks active products at or below min stock.
	TaskLowStockScan = "stock:low_scan"
	// TaskFinanceCacheWarm pre-computes the previous day's ledger.
	TaskFinanceCacheWarm = "finance:cache_warm"
	// TaskIdempotencyCleanup drops request keys past retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// CacheWarmPayload optionally pins the day to warm; empty means
// yesterday at execution time.
type CacheWarmPayload struct {
	Date string `json:"date,omitempty"`
}

// CleanupPayload overrides the idempotency key retention.
type CleanupPayload struct {
	RetentionHours int `json:"retentionHours,omitempty"`
}

// NewLowStockScanTask constructs the scan task.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskLowStockScan, nil)
}

// NewCacheWarmTask constructs the warm task.
func NewCacheWarmTask(payload CacheWarmPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFinanceCacheWarm, data), nil
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(payload CleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
