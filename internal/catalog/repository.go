package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/platform/db"
)

// ListFilters narrows product listings.
type ListFilters struct {
	Search   string
	IsActive *bool
	LowStock bool
	Page     int
	Limit    int
}

// Repository exposes catalog persistence. Product writes go through
// WithTx so the row and its audit entry commit together.
type Repository interface {
	ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetCounterparty(ctx context.Context, id int64) (Counterparty, error)
	CreateCounterparty(ctx context.Context, c Counterparty) (Counterparty, error)
	ListLowStock(ctx context.Context) ([]Product, error)
}

// TxRepository is the transactional surface for audited product writes.
type TxRepository interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, id int64, p Product) error
	audit.Writer
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, sku, name, stock_quantity, min_stock, cost_price, sale_price, is_active, created_at, updated_at`

func (r *repository) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	clause := ""
	if filters.Search != "" {
		argCount++
		clause += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR sku ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		clause += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}
	if filters.LowStock {
		clause += ` AND stock_quantity <= min_stock`
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += clause + ` ORDER BY name ASC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return getProduct(ctx, r.db, id)
}

// WithTx executes the callback inside one transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{dbtx: tx, Writer: audit.NewTxWriter(tx)})
	})
}

type txRepository struct {
	dbtx db.DBTX
	audit.Writer
}

func (t *txRepository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return getProduct(ctx, t.dbtx, id)
}

func getProduct(ctx context.Context, q db.DBTX, id int64) (Product, error) {
	row := q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *repository) GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[int64]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

func (t *txRepository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	now := time.Now()
	err := t.dbtx.QueryRow(ctx, `INSERT INTO products (sku, name, stock_quantity, min_stock, cost_price, sale_price, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING id`,
		p.SKU, p.Name, p.StockQuantity, p.MinStock, p.CostPrice, p.SalePrice, p.IsActive, now).Scan(&p.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, ErrDuplicateSKU
		}
		return Product{}, err
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (t *txRepository) UpdateProduct(ctx context.Context, id int64, p Product) error {
	tag, err := t.dbtx.Exec(ctx, `UPDATE products SET name=$2, min_stock=$3, cost_price=$4, sale_price=$5, is_active=$6, updated_at=NOW() WHERE id=$1`,
		id, p.Name, p.MinStock, p.CostPrice, p.SalePrice, p.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) GetCounterparty(ctx context.Context, id int64) (Counterparty, error) {
	var c Counterparty
	err := r.db.QueryRow(ctx, `SELECT id, kind, name, phone, is_active, created_at FROM counterparties WHERE id = $1`, id).
		Scan(&c.ID, &c.Kind, &c.Name, &c.Phone, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Counterparty{}, ErrNotFound
	}
	return c, err
}

func (r *repository) CreateCounterparty(ctx context.Context, c Counterparty) (Counterparty, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO counterparties (kind, name, phone, is_active, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		c.Kind, c.Name, c.Phone, c.IsActive, now).Scan(&c.ID)
	if err != nil {
		return Counterparty{}, err
	}
	c.CreatedAt = now
	return c, nil
}

func (r *repository) ListLowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active AND stock_quantity <= min_stock ORDER BY stock_quantity ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.StockQuantity, &p.MinStock, &p.CostPrice, &p.SalePrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
