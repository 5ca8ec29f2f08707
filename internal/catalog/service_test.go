package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bazarly/bazarly/internal/audit"
)

// memoryCatalogRepo emulates the transactional repository: WithTx
// stages product writes and audit entries, discarding both when the
// callback fails.
type memoryCatalogRepo struct {
	products  map[int64]Product
	nextID    int64
	audits    []audit.Entry
	recordErr error
}

func newMemoryCatalogRepo() *memoryCatalogRepo {
	return &memoryCatalogRepo{products: map[int64]Product{}, nextID: 1}
}

type memoryCatalogTx struct {
	repo     *memoryCatalogRepo
	products map[int64]Product
	nextID   int64
	audits   []audit.Entry
}

func (m *memoryCatalogRepo) WithTx(_ context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryCatalogTx{repo: m, products: map[int64]Product{}, nextID: m.nextID}
	for k, v := range m.products {
		tx.products[k] = v
	}
	if err := fn(context.Background(), tx); err != nil {
		return err
	}
	m.products = tx.products
	m.nextID = tx.nextID
	m.audits = append(m.audits, tx.audits...)
	return nil
}

func (t *memoryCatalogTx) GetProduct(_ context.Context, id int64) (Product, error) {
	p, ok := t.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (t *memoryCatalogTx) CreateProduct(_ context.Context, p Product) (Product, error) {
	for _, existing := range t.products {
		if existing.SKU == p.SKU {
			return Product{}, ErrDuplicateSKU
		}
	}
	p.ID = t.nextID
	t.nextID++
	t.products[p.ID] = p
	return p, nil
}

func (t *memoryCatalogTx) UpdateProduct(_ context.Context, id int64, p Product) error {
	existing, ok := t.products[id]
	if !ok {
		return ErrNotFound
	}
	existing.Name = p.Name
	existing.MinStock = p.MinStock
	existing.CostPrice = p.CostPrice
	existing.SalePrice = p.SalePrice
	existing.IsActive = p.IsActive
	t.products[id] = existing
	return nil
}

func (t *memoryCatalogTx) Record(_ context.Context, e audit.Entry) error {
	if t.repo.recordErr != nil {
		return t.repo.recordErr
	}
	t.audits = append(t.audits, e)
	return nil
}

func (m *memoryCatalogRepo) ListProducts(_ context.Context, filters ListFilters) ([]Product, int, error) {
	var out []Product
	for _, p := range m.products {
		if filters.LowStock && p.StockQuantity > p.MinStock {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memoryCatalogRepo) GetProduct(_ context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryCatalogRepo) GetProducts(_ context.Context, ids []int64) (map[int64]Product, error) {
	out := map[int64]Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memoryCatalogRepo) GetCounterparty(_ context.Context, _ int64) (Counterparty, error) {
	return Counterparty{}, ErrNotFound
}

func (m *memoryCatalogRepo) CreateCounterparty(_ context.Context, c Counterparty) (Counterparty, error) {
	c.ID = 1
	return c, nil
}

func (m *memoryCatalogRepo) ListLowStock(_ context.Context) ([]Product, error) {
	var out []Product
	for _, p := range m.products {
		if p.IsActive && p.StockQuantity <= p.MinStock {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestCreateProductRejectsDuplicateSKU(t *testing.T) {
	repo := newMemoryCatalogRepo()
	svc := NewService(repo)

	_, err := svc.CreateProduct(context.Background(), Product{SKU: "SKU-1", Name: "Widget"})
	require.NoError(t, err)

	_, err = svc.CreateProduct(context.Background(), Product{SKU: "SKU-1", Name: "Widget again"})
	require.ErrorIs(t, err, ErrDuplicateSKU)
}

func TestUpdateProductAuditsOldAndNewState(t *testing.T) {
	repo := newMemoryCatalogRepo()
	svc := NewService(repo)

	created, err := svc.CreateProduct(context.Background(), Product{SKU: "SKU-1", Name: "Widget", SalePrice: 10})
	require.NoError(t, err)

	_, err = svc.UpdateProduct(context.Background(), created.ID, Product{Name: "Widget v2", SalePrice: 12, IsActive: true})
	require.NoError(t, err)

	require.Len(t, repo.audits, 2)
	update := repo.audits[1]
	require.Equal(t, "UPDATE", update.Action)
	require.Equal(t, "CATALOG", update.Module)
	require.Equal(t, "Widget", update.OldState.(Product).Name)
	require.Equal(t, "Widget v2", update.NewState.(Product).Name)
}

func TestProductWriteFailedAuditRollsBack(t *testing.T) {
	repo := newMemoryCatalogRepo()
	svc := NewService(repo)

	created, err := svc.CreateProduct(context.Background(), Product{SKU: "SKU-1", Name: "Widget", SalePrice: 10})
	require.NoError(t, err)

	repo.recordErr = errors.New("audit store unavailable")

	_, err = svc.CreateProduct(context.Background(), Product{SKU: "SKU-2", Name: "Gadget"})
	require.ErrorIs(t, err, repo.recordErr)
	require.Len(t, repo.products, 1)

	_, err = svc.UpdateProduct(context.Background(), created.ID, Product{Name: "Widget v2", IsActive: true})
	require.ErrorIs(t, err, repo.recordErr)
	require.Equal(t, "Widget", repo.products[created.ID].Name)
	require.Len(t, repo.audits, 1)
}

func TestListLowStockFiltersByMinStock(t *testing.T) {
	repo := newMemoryCatalogRepo()
	svc := NewService(repo)

	_, err := svc.CreateProduct(context.Background(), Product{SKU: "A", Name: "Low", StockQuantity: 2, MinStock: 5})
	require.NoError(t, err)
	_, err = svc.CreateProduct(context.Background(), Product{SKU: "B", Name: "Healthy", StockQuantity: 50, MinStock: 5})
	require.NoError(t, err)

	low, err := svc.ListLowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, "Low", low[0].Name)
}
