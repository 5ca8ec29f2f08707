package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository is the transactional surface for manual adjustments.
type TxRepository interface {
	TxPort
	audit.Writer
}

type txRepository struct {
	TxPort
	audit.Writer
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		wrapper := &txRepository{TxPort: NewTxPort(tx), Writer: audit.NewTxWriter(tx)}
		return fn(ctx, wrapper)
	})
}

// ListMovements returns journal rows for a product, oldest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("ledger: repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, COALESCE(order_id, 0), qty_change, stock_before, stock_after, reason, ref_id, created_by, created_at
FROM stock_movements
WHERE ($1 = 0 OR product_id = $1)
  AND ($2 = 0 OR order_id = $2)
  AND created_at BETWEEN COALESCE(NULLIF($3, '0001-01-01 00:00:00+00'::timestamptz), '-infinity') AND COALESCE(NULLIF($4, '0001-01-01 00:00:00+00'::timestamptz), 'infinity')
ORDER BY created_at ASC, id ASC
LIMIT $5`, filter.ProductID, filter.OrderID, filter.From, filter.To, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var mv Movement
		if err := rows.Scan(&mv.ID, &mv.ProductID, &mv.OrderID, &mv.QtyChange, &mv.StockBefore, &mv.StockAfter, &mv.Reason, &mv.RefID, &mv.CreatedBy, &mv.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

type txPort struct {
	dbtx db.DBTX
}

// NewTxPort adapts a pgx transaction (or pool) into a TxPort.
func NewTxPort(dbtx db.DBTX) TxPort {
	return &txPort{dbtx: dbtx}
}

func (p *txPort) GetStockForUpdate(ctx context.Context, productID int64) (Stock, error) {
	var stock Stock
	err := p.dbtx.QueryRow(ctx, `SELECT id, stock_quantity FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&stock.ProductID, &stock.Qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrProductNotFound
		}
		return Stock{}, err
	}
	return stock, nil
}

func (p *txPort) UpdateStock(ctx context.Context, productID, qty int64) error {
	_, err := p.dbtx.Exec(ctx, `UPDATE products SET stock_quantity=$2, updated_at=NOW() WHERE id=$1`, productID, qty)
	return err
}

func (p *txPort) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	var id int64
	err := p.dbtx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, order_id, qty_change, stock_before, stock_after, reason, ref_id, created_by, created_at)
VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		mv.ProductID, mv.OrderID, mv.QtyChange, mv.StockBefore, mv.StockAfter, mv.Reason, mv.RefID, mv.CreatedBy, mv.CreatedAt).Scan(&id)
	return id, err
}
