package finance

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/platform/db"
)

// Store is the read/write surface the service needs.
type Store interface {
	RevenueBetween(ctx context.Context, from, to time.Time) (float64, error)
	RefundsBetween(ctx context.Context, from, to time.Time) (float64, error)
	COGSBetween(ctx context.Context, from, to time.Time) (float64, error)
	ExpensesByCategory(ctx context.Context, from, to time.Time) (map[string]float64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	DailyStats(ctx context.Context, day time.Time) (DailyStats, error)
}

// TxStore is the transactional surface for expense writes. The expense
// row and its audit entry commit together or not at all.
type TxStore interface {
	InsertExpense(ctx context.Context, e Expense) (Expense, error)
	audit.Writer
}

// Repository aggregates financial facts from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RevenueBetween sums sale order totals in the window. Cancelled
// orders never count; returned ones do, their refunds are subtracted
// separately so the report shows both sides.
func (r *Repository) RevenueBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var revenue float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM orders
WHERE type = 'SALE' AND status <> 'CANCELLED' AND created_at BETWEEN $1 AND $2`, from, to).Scan(&revenue)
	return revenue, err
}

func (r *Repository) RefundsBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var refunds float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(rr.amount), 0)
FROM returns_refunds rr JOIN orders o ON o.id = rr.order_id
WHERE o.type = 'SALE' AND rr.created_at BETWEEN $1 AND $2`, from, to).Scan(&refunds)
	return refunds, err
}

// COGSBetween sums the captured unit cost of sold lines.
func (r *Repository) COGSBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var cogs float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(oi.qty * oi.unit_cost), 0)
FROM order_items oi JOIN orders o ON o.id = oi.order_id
WHERE o.type = 'SALE' AND o.status <> 'CANCELLED' AND o.created_at BETWEEN $1 AND $2`, from, to).Scan(&cogs)
	return cogs, err
}

func (r *Repository) ExpensesByCategory(ctx context.Context, from, to time.Time) (map[string]float64, error) {
	rows, err := r.pool.Query(ctx, `SELECT category, COALESCE(SUM(amount), 0)
FROM expenses WHERE spent_at BETWEEN $1 AND $2 GROUP BY category`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := map[string]float64{}
	for rows.Next() {
		var category string
		var amount float64
		if err := rows.Scan(&category, &amount); err != nil {
			return nil, err
		}
		result[category] = amount
	}
	return result, rows.Err()
}

// WithTx executes the callback inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{dbtx: tx, Writer: audit.NewTxWriter(tx)})
	})
}

type txStore struct {
	dbtx db.DBTX
	audit.Writer
}

func (t *txStore) InsertExpense(ctx context.Context, e Expense) (Expense, error) {
	now := time.Now().UTC()
	err := t.dbtx.QueryRow(ctx, `INSERT INTO expenses (category, amount, note, spent_at, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		e.Category, e.Amount, e.Note, e.SpentAt, e.CreatedBy, now).Scan(&e.ID)
	if err != nil {
		return Expense{}, err
	}
	e.CreatedAt = now
	return e, nil
}

func (r *Repository) DailyStats(ctx context.Context, day time.Time) (DailyStats, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var stats DailyStats
	err := r.pool.QueryRow(ctx, `SELECT
  COUNT(*) FILTER (WHERE type = 'SALE' AND status <> 'CANCELLED'),
  COUNT(*) FILTER (WHERE type = 'PURCHASE' AND status <> 'CANCELLED'),
  COALESCE(SUM(total_amount) FILTER (WHERE type = 'SALE' AND status <> 'CANCELLED'), 0),
  COALESCE(SUM(paid_amount) FILTER (WHERE type = 'SALE' AND status <> 'CANCELLED'), 0)
FROM orders WHERE created_at >= $1 AND created_at < $2`, start, end).
		Scan(&stats.SaleOrders, &stats.PurchaseOrders, &stats.Revenue, &stats.PaymentsReceived)
	if err != nil {
		return DailyStats{}, err
	}

	if err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(rr.amount), 0)
FROM returns_refunds rr JOIN orders o ON o.id = rr.order_id
WHERE o.type = 'SALE' AND rr.created_at >= $1 AND rr.created_at < $2`, start, end).Scan(&stats.Refunds); err != nil {
		return DailyStats{}, err
	}

	if err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)
FROM expenses WHERE spent_at >= $1 AND spent_at < $2`, start, end).Scan(&stats.Expenses); err != nil {
		return DailyStats{}, err
	}
	return stats, nil
}

var _ Store = (*Repository)(nil)
