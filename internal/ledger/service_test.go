package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bazarly/bazarly/internal/audit"
)

type memoryRepo struct {
	stocks    map[int64]int64
	movements []Movement
	audits    []audit.Entry
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stocks: make(map[int64]int64)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	result := []Movement{}
	for _, mv := range r.movements {
		if filter.ProductID != 0 && mv.ProductID != filter.ProductID {
			continue
		}
		if filter.OrderID != 0 && mv.OrderID != filter.OrderID {
			continue
		}
		result = append(result, mv)
	}
	return result, nil
}

func (tx *memoryTx) GetStockForUpdate(ctx context.Context, productID int64) (Stock, error) {
	qty, ok := tx.repo.stocks[productID]
	if !ok {
		return Stock{}, ErrProductNotFound
	}
	return Stock{ProductID: productID, Qty: qty}, nil
}

func (tx *memoryTx) UpdateStock(ctx context.Context, productID, qty int64) error {
	tx.repo.stocks[productID] = qty
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	tx.repo.nextID++
	mv.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, mv)
	return mv.ID, nil
}

func (tx *memoryTx) Record(ctx context.Context, e audit.Entry) error {
	tx.repo.audits = append(tx.repo.audits, e)
	return nil
}

func TestApplySignedDeltas(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 10
	ctx := context.Background()

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		mv, err := Apply(ctx, tx, ApplyInput{ProductID: 1, QtyChange: 5, Reason: "purchase"})
		require.NoError(t, err)
		require.EqualValues(t, 10, mv.StockBefore)
		require.EqualValues(t, 15, mv.StockAfter)
		require.NotEmpty(t, mv.RefID)
		return nil
	})
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		mv, err := Apply(ctx, tx, ApplyInput{ProductID: 1, QtyChange: -3, Reason: "sale"})
		require.NoError(t, err)
		require.EqualValues(t, 12, mv.StockAfter)
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 12, repo.stocks[1])
	require.Len(t, repo.movements, 2)
}

func TestApplyNegativeStockGuard(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 2
	ctx := context.Background()

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := Apply(ctx, tx, ApplyInput{ProductID: 1, QtyChange: -3, Reason: "sale"})
		return err
	})
	require.ErrorIs(t, err, ErrNegativeStock)
	// failed apply must not move the balance
	require.EqualValues(t, 2, repo.stocks[1])
	require.Empty(t, repo.movements)
}

func TestApplyUnknownProduct(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := Apply(ctx, tx, ApplyInput{ProductID: 9, QtyChange: 1})
		return err
	})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestPostAdjustmentAudits(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[7] = 4
	svc := NewService(repo)

	mv, err := svc.PostAdjustment(context.Background(), AdjustmentInput{ProductID: 7, QtyChange: -4, Reason: "damage write-off", ActorID: 3})
	require.NoError(t, err)
	require.EqualValues(t, 0, mv.StockAfter)
	require.Len(t, repo.audits, 1)
	require.Equal(t, "INVENTORY", repo.audits[0].Module)
	require.Equal(t, "ADJUST", repo.audits[0].Action)
	require.Equal(t, "7", repo.audits[0].TargetID)

	_, err = svc.PostAdjustment(context.Background(), AdjustmentInput{ProductID: 7, QtyChange: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}
