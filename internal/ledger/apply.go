package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TxPort is the transactional surface the ledger needs. Repositories of
// modules that mutate stock embed a pgx-backed implementation so the
// whole business operation commits or rolls back as one transaction.
type TxPort interface {
	GetStockForUpdate(ctx context.Context, productID int64) (Stock, error)
	UpdateStock(ctx context.Context, productID, qty int64) error
	InsertMovement(ctx context.Context, mv Movement) (int64, error)
}

// Apply posts a signed delta against one product inside the caller's
// transaction. The balance row is read under a row lock, so concurrent
// applies against the same product serialize: two sales cannot both
// succeed against insufficient shared stock.
func Apply(ctx context.Context, tx TxPort, input ApplyInput) (Movement, error) {
	if input.QtyChange == 0 {
		return Movement{}, ErrInvalidQuantity
	}
	stock, err := tx.GetStockForUpdate(ctx, input.ProductID)
	if err != nil {
		return Movement{}, err
	}
	newQty := stock.Qty + input.QtyChange
	if newQty < 0 {
		return Movement{}, ErrNegativeStock
	}
	if err := tx.UpdateStock(ctx, input.ProductID, newQty); err != nil {
		return Movement{}, err
	}
	mv := Movement{
		ProductID:   input.ProductID,
		OrderID:     input.OrderID,
		QtyChange:   input.QtyChange,
		StockBefore: stock.Qty,
		StockAfter:  newQty,
		Reason:      input.Reason,
		RefID:       uuid.NewString(),
		CreatedBy:   input.ActorID,
		CreatedAt:   time.Now().UTC(),
	}
	id, err := tx.InsertMovement(ctx, mv)
	if err != nil {
		return Movement{}, err
	}
	mv.ID = id
	return mv, nil
}
