package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const defaultRetention = 48 * time.Hour

// KeyCleaner removes idempotency keys older than the retention window.
// Satisfied by shared.IdempotencyStore.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob keeps the keys table from growing unbounded.
type IdempotencyCleanupJob struct {
	Store  KeyCleaner
	Logger *slog.Logger
}

func NewIdempotencyCleanupJob(store KeyCleaner, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Logger: logger}
}

// Handle executes the cleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	retention := defaultRetention
	if len(t.Payload()) > 0 {
		var payload CleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.RetentionHours > 0 {
			retention = time.Duration(payload.RetentionHours) * time.Hour
		}
	}
	if err := j.Store.Cleanup(ctx, retention); err != nil {
		return err
	}
	j.log().Info("idempotency keys cleaned", slog.Duration("retention", retention))
	return nil
}

func (j *IdempotencyCleanupJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
