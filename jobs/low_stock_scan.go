package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/bazarly/bazarly/internal/catalog"
)

// LowStockLister yields active products at or below their minimum.
// Satisfied by catalog.Service.
type LowStockLister interface {
	ListLowStock(ctx context.Context) ([]catalog.Product, error)
}

// LowStockGauge publishes the current count.
// Satisfied by observability.Metrics.
type LowStockGauge interface {
	SetLowStockCount(n int)
}

// LowStockScanJob walks the catalog and reports products that need
// reordering.
type LowStockScanJob struct {
	Catalog LowStockLister
	Metrics LowStockGauge
	Logger  *slog.Logger
}

func NewLowStockScanJob(cat LowStockLister, metrics LowStockGauge, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{Catalog: cat, Metrics: metrics, Logger: logger}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Catalog == nil {
		return errors.New("low stock scan: handler not configured")
	}
	products, err := j.Catalog.ListLowStock(ctx)
	if err != nil {
		return err
	}
	if j.Metrics != nil {
		j.Metrics.SetLowStockCount(len(products))
	}
	for _, p := range products {
		j.log().Warn("low stock",
			slog.Int64("productId", p.ID),
			slog.String("sku", p.SKU),
			slog.Int64("stock", p.StockQuantity),
			slog.Int64("minStock", p.MinStock),
		)
	}
	j.log().Info("low stock scan complete", slog.Int("flagged", len(products)))
	return nil
}

func (j *LowStockScanJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
