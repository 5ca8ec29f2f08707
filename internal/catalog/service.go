package catalog

import (
	"context"
	"strconv"

	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/shared"
)

// Service wraps catalog reads and writes. Product writes are audited
// inside the same transaction; reads are served straight from the
// repository.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	}
	if filters.Limit > 100 {
		filters.Limit = 100
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	return s.repo.ListProducts(ctx, filters)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// GetProducts resolves a batch of product ids. Missing ids are simply
// absent from the returned map; callers decide whether that is an error.
func (s *Service) GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	if len(ids) == 0 {
		return map[int64]Product{}, nil
	}
	return s.repo.GetProducts(ctx, ids)
}

func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p.IsActive = true
	var created Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.CreateProduct(ctx, p)
		if err != nil {
			return err
		}
		return tx.Record(ctx, audit.Entry{
			TargetID:  strconv.FormatInt(created.ID, 10),
			Module:    "CATALOG",
			Action:    "CREATE",
			NewState:  created,
			ChangedBy: actorFrom(ctx),
		})
	})
	if err != nil {
		return Product{}, err
	}
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, p Product) (Product, error) {
	var after Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.UpdateProduct(ctx, id, p); err != nil {
			return err
		}
		after, err = tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		return tx.Record(ctx, audit.Entry{
			TargetID:  strconv.FormatInt(id, 10),
			Module:    "CATALOG",
			Action:    "UPDATE",
			OldState:  before,
			NewState:  after,
			ChangedBy: actorFrom(ctx),
		})
	})
	if err != nil {
		return Product{}, err
	}
	return after, nil
}

func (s *Service) GetCounterparty(ctx context.Context, id int64) (Counterparty, error) {
	return s.repo.GetCounterparty(ctx, id)
}

func (s *Service) CreateCounterparty(ctx context.Context, c Counterparty) (Counterparty, error) {
	c.IsActive = true
	return s.repo.CreateCounterparty(ctx, c)
}

// ListLowStock returns active products at or below their minimum stock.
// Used by the handler and by the background low stock scan.
func (s *Service) ListLowStock(ctx context.Context) ([]Product, error) {
	return s.repo.ListLowStock(ctx)
}

// actorFrom resolves the audit actor; zero means an unauthenticated
// caller, which only happens for seed and test paths.
func actorFrom(ctx context.Context) int64 {
	if p, ok := shared.PrincipalFromContext(ctx); ok {
		return p.UserID
	}
	return 0
}
