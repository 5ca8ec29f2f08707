package returns

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/ledger"
	"github.com/bazarly/bazarly/internal/orders"
	"github.com/bazarly/bazarly/internal/platform/db"
)

// TxRepository is the transactional surface of one return. Like order
// creation, the document, the reversed stock deltas, the order status
// flip and the audit entry commit together or not at all.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, orderID int64, typ orders.Type) (orders.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]orders.Item, error)
	SumReturnedAmount(ctx context.Context, orderID int64) (float64, error)
	SumReturnedQtyByLine(ctx context.Context, orderID int64) (map[int64]int64, error)
	InsertReturn(ctx context.Context, ret Return) (int64, error)
	InsertReturnItems(ctx context.Context, returnID int64, items []ReturnItem) error
	SetOrderStatus(ctx context.Context, orderID int64, status orders.Status) error

	ledger.TxPort
	audit.Writer
}

// Repository persists returns in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	dbtx db.DBTX
	ledger.TxPort
	audit.Writer
}

func (r *Repository) WithTx(ctx context.Context, retries int, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("returns: repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, retries, func(tx pgx.Tx) error {
		wrapper := &txRepository{dbtx: tx, TxPort: ledger.NewTxPort(tx), Writer: audit.NewTxWriter(tx)}
		return fn(ctx, wrapper)
	})
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, orderID int64, typ orders.Type) (orders.Order, error) {
	var o orders.Order
	err := t.dbtx.QueryRow(ctx, `SELECT id, type, counterparty_id, status, payment_status, total_amount, paid_amount, note, created_by, created_at, updated_at
FROM orders WHERE id = $1 AND type = $2 FOR UPDATE`, orderID, typ).
		Scan(&o.ID, &o.Type, &o.CounterpartyID, &o.Status, &o.PaymentStatus, &o.TotalAmount, &o.PaidAmount, &o.Note, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, ErrOrderNotFound
	}
	return o, err
}

func (t *txRepository) GetOrderItems(ctx context.Context, orderID int64) ([]orders.Item, error) {
	rows, err := t.dbtx.Query(ctx, `SELECT id, order_id, product_id, qty, unit_price, unit_cost, line_total FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []orders.Item{}
	for rows.Next() {
		var item orders.Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Qty, &item.UnitPrice, &item.UnitCost, &item.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (t *txRepository) SumReturnedAmount(ctx context.Context, orderID int64) (float64, error) {
	var sum float64
	err := t.dbtx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM returns_refunds WHERE order_id = $1`, orderID).Scan(&sum)
	return sum, err
}

func (t *txRepository) SumReturnedQtyByLine(ctx context.Context, orderID int64) (map[int64]int64, error) {
	rows, err := t.dbtx.Query(ctx, `SELECT ri.order_item_id, COALESCE(SUM(ri.qty), 0)
FROM return_items ri JOIN returns_refunds rr ON rr.id = ri.return_id
WHERE rr.order_id = $1 GROUP BY ri.order_item_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sums := map[int64]int64{}
	for rows.Next() {
		var lineID, qty int64
		if err := rows.Scan(&lineID, &qty); err != nil {
			return nil, err
		}
		sums[lineID] = qty
	}
	return sums, rows.Err()
}

func (t *txRepository) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := t.dbtx.QueryRow(ctx, `INSERT INTO returns_refunds (order_id, amount, reason, created_by, created_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		ret.OrderID, ret.Amount, ret.Reason, ret.CreatedBy, ret.CreatedAt).Scan(&id)
	return id, err
}

func (t *txRepository) InsertReturnItems(ctx context.Context, returnID int64, items []ReturnItem) error {
	for _, item := range items {
		_, err := t.dbtx.Exec(ctx, `INSERT INTO return_items (return_id, order_item_id, product_id, qty) VALUES ($1, $2, $3, $4)`,
			returnID, item.OrderItemID, item.ProductID, item.Qty)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepository) SetOrderStatus(ctx context.Context, orderID int64, status orders.Status) error {
	_, err := t.dbtx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, orderID, status)
	return err
}

// ListByOrder returns the refund documents of one order with items.
func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]Return, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, amount, reason, created_by, created_at FROM returns_refunds WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Return{}
	for rows.Next() {
		var ret Return
		if err := rows.Scan(&ret.ID, &ret.OrderID, &ret.Amount, &ret.Reason, &ret.CreatedBy, &ret.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ret)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		itemRows, err := r.pool.Query(ctx, `SELECT id, return_id, order_item_id, product_id, qty FROM return_items WHERE return_id = $1 ORDER BY id`, result[i].ID)
		if err != nil {
			return nil, err
		}
		for itemRows.Next() {
			var item ReturnItem
			if err := itemRows.Scan(&item.ID, &item.ReturnID, &item.OrderItemID, &item.ProductID, &item.Qty); err != nil {
				itemRows.Close()
				return nil, err
			}
			result[i].Items = append(result[i].Items, item)
		}
		itemRows.Close()
		if err := itemRows.Err(); err != nil {
			return nil, err
		}
	}
	return result, nil
}
