package ledger

import (
	"errors"
	"time"
)

// Movement is one append-only row in the stock journal. Every change to
// a product's stock quantity produces exactly one movement recording the
// balance before and after.
type Movement struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	OrderID     int64     `json:"order_id,omitempty"`
	QtyChange   int64     `json:"qty_change"`
	StockBefore int64     `json:"stock_before"`
	StockAfter  int64     `json:"stock_after"`
	Reason      string    `json:"reason"`
	RefID       string    `json:"ref_id"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stock is the current balance row of a product, read under lock.
type Stock struct {
	ProductID int64
	Qty       int64
}

// ApplyInput describes a signed delta against one product.
type ApplyInput struct {
	ProductID int64
	QtyChange int64
	OrderID   int64
	Reason    string
	ActorID   int64
}

// AdjustmentInput describes a manual stock adjustment.
type AdjustmentInput struct {
	ProductID int64
	QtyChange int64
	Reason    string
	ActorID   int64
}

// MovementFilter narrows the movement listing.
type MovementFilter struct {
	ProductID int64
	OrderID   int64
	From      time.Time
	To        time.Time
	Limit     int
}

// ErrNegativeStock is returned when a delta would take stock below zero.
var ErrNegativeStock = errors.New("ledger: negative stock not allowed")

// ErrInvalidQuantity indicates a zero delta.
var ErrInvalidQuantity = errors.New("ledger: quantity must be non zero")

// ErrProductNotFound indicates the product row does not exist.
var ErrProductNotFound = errors.New("ledger: product not found")
