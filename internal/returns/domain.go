package returns

import (
	"errors"
	"time"
)

// Return is one refund document against an order.
type Return struct {
	ID        int64        `json:"id"`
	OrderID   int64        `json:"orderId"`
	Amount    float64      `json:"amount"`
	Reason    string       `json:"reason"`
	CreatedBy int64        `json:"createdBy"`
	CreatedAt time.Time    `json:"createdAt"`
	Items     []ReturnItem `json:"items,omitempty"`
}

// ReturnItem reverses part of one original order line.
type ReturnItem struct {
	ID          int64 `json:"id"`
	ReturnID    int64 `json:"returnId"`
	OrderItemID int64 `json:"orderItemId"`
	ProductID   int64 `json:"productId"`
	Qty         int64 `json:"qty"`
}

// CreateReturnRequest is the payload for POST /returns. When Lines is
// empty the whole remaining order is reversed.
type CreateReturnRequest struct {
	OrderID   int64               `json:"orderId" validate:"required,gt=0"`
	OrderType string              `json:"orderType" validate:"required,oneof=SALE PURCHASE"`
	Reason    string              `json:"reason" validate:"required,max=500"`
	Lines     []ReturnLineRequest `json:"lines" validate:"omitempty,dive"`
}

// ReturnLineRequest selects a quantity from one original line.
type ReturnLineRequest struct {
	OrderItemID int64 `json:"orderItemId" validate:"required,gt=0"`
	Qty         int64 `json:"qty" validate:"required,gt=0"`
}

var (
	ErrOrderNotFound   = errors.New("returns: order not found")
	ErrNotReturnable   = errors.New("returns: order is not in a returnable state")
	ErrAlreadyReturned = errors.New("returns: refund exceeds order total")
	ErrQtyExceeded     = errors.New("returns: quantity exceeds remaining line quantity")
	ErrUnknownLine     = errors.New("returns: line does not belong to the order")
	ErrNothingToReturn = errors.New("returns: nothing left to return")
)
