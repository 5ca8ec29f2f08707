package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bazarly/bazarly/internal/finance"
)

// LedgerWarmer computes (and thereby caches) a daily ledger.
// Satisfied by finance.Service.
type LedgerWarmer interface {
	DailyLedger(ctx context.Context, day time.Time) (finance.DailyLedgerReport, error)
}

// CacheWarmJob pre-computes the previous day's ledger right after the
// nightly version bump, so the first dashboard read of the morning hits
// a warm cache.
type CacheWarmJob struct {
	Finance LedgerWarmer
	Logger  *slog.Logger
	clock   func() time.Time
}

func NewCacheWarmJob(fin LedgerWarmer, logger *slog.Logger) *CacheWarmJob {
	return &CacheWarmJob{Finance: fin, Logger: logger, clock: func() time.Time { return time.Now().UTC() }}
}

// Handle executes the warm-up.
func (j *CacheWarmJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Finance == nil {
		return errors.New("cache warm: handler not configured")
	}
	var payload CacheWarmPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	day := j.clock().AddDate(0, 0, -1)
	if payload.Date != "" {
		parsed, err := time.Parse("2006-01-02", payload.Date)
		if err != nil {
			return asynq.SkipRetry
		}
		day = parsed
	}

	report, err := j.Finance.DailyLedger(ctx, day)
	if err != nil {
		return err
	}
	j.log().Info("daily ledger warmed",
		slog.String("date", report.Date),
		slog.Int("saleOrders", report.SaleOrders),
		slog.Float64("revenue", report.Revenue),
	)
	return nil
}

func (j *CacheWarmJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
