package orders

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/ledger"
	"github.com/bazarly/bazarly/internal/platform/db"
)

// TxRepository is the write surface of one order transaction. It embeds
// the ledger and audit ports so the header, lines, stock deltas and the
// audit entry all commit or roll back together.
type TxRepository interface {
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertItems(ctx context.Context, orderID int64, items []Item) error
	GetOrderForUpdate(ctx context.Context, id int64, typ Type) (Order, error)
	GetItems(ctx context.Context, orderID int64) ([]Item, error)
	UpdateOrder(ctx context.Context, o Order) error

	ledger.TxPort
	audit.Writer
}

// Repository persists orders in PostgreSQL.
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

// WithTx runs fn inside one retried repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, retries int, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("orders: repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, retries, func(tx pgx.Tx) error {
		wrapper := &txRepository{dbtx: tx, TxPort: ledger.NewTxPort(tx), Writer: audit.NewTxWriter(tx)}
		return fn(ctx, wrapper)
	})
}

const orderColumns = `id, type, counterparty_id, status, payment_status, total_amount, paid_amount, note, created_by, created_at, updated_at`

func (t *txRepository) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := t.dbtx.QueryRow(ctx, `INSERT INTO orders (type, counterparty_id, status, payment_status, total_amount, paid_amount, note, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9) RETURNING id`,
		o.Type, o.CounterpartyID, o.Status, o.PaymentStatus, o.TotalAmount, o.PaidAmount, o.Note, o.CreatedBy, o.CreatedAt).Scan(&id)
	return id, err
}

func (t *txRepository) InsertItems(ctx context.Context, orderID int64, items []Item) error {
	for _, item := range items {
		_, err := t.dbtx.Exec(ctx, `INSERT INTO order_items (order_id, product_id, qty, unit_price, unit_cost, line_total)
VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, item.ProductID, item.Qty, item.UnitPrice, item.UnitCost, item.LineTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, id int64, typ Type) (Order, error) {
	row := t.dbtx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND type = $2 FOR UPDATE`, id, typ)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (t *txRepository) GetItems(ctx context.Context, orderID int64) ([]Item, error) {
	return queryItems(ctx, t.dbtx, orderID)
}

func (t *txRepository) UpdateOrder(ctx context.Context, o Order) error {
	_, err := t.dbtx.Exec(ctx, `UPDATE orders SET status=$2, payment_status=$3, paid_amount=$4, updated_at=NOW() WHERE id=$1`,
		o.ID, o.Status, o.PaymentStatus, o.PaidAmount)
	return err
}

// Get loads one order with its items outside any transaction.
func (r *Repository) Get(ctx context.Context, id int64, typ Type) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND type = $2`, id, typ)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Items, err = queryItems(ctx, r.pool, id)
	return o, err
}

// List returns a page of order headers plus the unpaged total.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM orders WHERE 1=1`
	args := []interface{}{}
	argCount := 0
	clause := ""

	if filters.Type != "" {
		argCount++
		clause += ` AND type = $` + strconv.Itoa(argCount)
		args = append(args, filters.Type)
	}
	if filters.Status != "" {
		argCount++
		clause += ` AND status = $` + strconv.Itoa(argCount)
		args = append(args, filters.Status)
	}
	if filters.CounterpartyID != 0 {
		argCount++
		clause += ` AND counterparty_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.CounterpartyID)
	}
	if !filters.From.IsZero() {
		argCount++
		clause += ` AND created_at >= $` + strconv.Itoa(argCount)
		args = append(args, filters.From)
	}
	if !filters.To.IsZero() {
		argCount++
		clause += ` AND created_at <= $` + strconv.Itoa(argCount)
		args = append(args, filters.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	argCount++
	query += clause + ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

func queryItems(ctx context.Context, dbtx db.DBTX, orderID int64) ([]Item, error) {
	rows, err := dbtx.Query(ctx, `SELECT id, order_id, product_id, qty, unit_price, unit_cost, line_total FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Qty, &item.UnitPrice, &item.UnitCost, &item.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Type, &o.CounterpartyID, &o.Status, &o.PaymentStatus, &o.TotalAmount, &o.PaidAmount, &o.Note, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
