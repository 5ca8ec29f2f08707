package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bazarly/bazarly/internal/audit"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// Service handles manual stock adjustments and the movement journal.
// Order and return flows post their deltas through Apply on their own
// transactions instead.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// PostAdjustment applies a manual signed delta in its own transaction
// and audits it.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (Movement, error) {
	if input.ProductID == 0 {
		return Movement{}, errors.New("ledger: product required")
	}
	if input.QtyChange == 0 {
		return Movement{}, ErrInvalidQuantity
	}
	var mv Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		mv, err = Apply(ctx, tx, ApplyInput{
			ProductID: input.ProductID,
			QtyChange: input.QtyChange,
			Reason:    input.Reason,
			ActorID:   input.ActorID,
		})
		if err != nil {
			return err
		}
		return tx.Record(ctx, audit.Entry{
			TargetID:  strconv.FormatInt(input.ProductID, 10),
			Module:    "INVENTORY",
			Action:    "ADJUST",
			OldState:  Stock{ProductID: input.ProductID, Qty: mv.StockBefore},
			NewState:  Stock{ProductID: input.ProductID, Qty: mv.StockAfter},
			ChangedBy: input.ActorID,
		})
	})
	if err != nil {
		return Movement{}, err
	}
	return mv, nil
}

// Movements lists journal entries.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ProductID == 0 && filter.OrderID == 0 {
		return nil, fmt.Errorf("ledger: product or order filter required")
	}
	return s.repo.ListMovements(ctx, filter)
}
