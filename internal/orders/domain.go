package orders

import (
	"errors"
	"time"
)

// Type distinguishes the two order flows. Returns are separate
// documents handled by the returns module, not order types.
type Type string

const (
	TypeSale     Type = "SALE"
	TypePurchase Type = "PURCHASE"
)

// ParseType validates a raw order type string.
func ParseType(raw string) (Type, error) {
	switch Type(raw) {
	case TypeSale, TypePurchase:
		return Type(raw), nil
	default:
		return "", ErrInvalidType
	}
}

// DeltaSign is the direction an order moves stock: sales consume,
// purchases replenish.
func (t Type) DeltaSign() int64 {
	if t == TypeSale {
		return -1
	}
	return 1
}

// ReverseReason names the movement written when the order's stock
// effect is undone, on cancellation or return.
func (t Type) ReverseReason() string {
	if t == TypeSale {
		return "SALE_RETURN"
	}
	return "PURCHASE_RETURN"
}

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusConfirmed         Status = "CONFIRMED"
	StatusProcessing        Status = "PROCESSING"
	StatusShipped           Status = "SHIPPED"
	StatusDelivered         Status = "DELIVERED"
	StatusCancelled         Status = "CANCELLED"
	StatusReturned          Status = "RETURNED"
	StatusPartiallyReturned Status = "PARTIALLY_RETURNED"
)

var forwardTransitions = map[Status]Status{
	StatusPending:    StatusConfirmed,
	StatusConfirmed:  StatusProcessing,
	StatusProcessing: StatusShipped,
	StatusShipped:    StatusDelivered,
}

// CanTransition reports whether the fulfilment state machine allows the
// move. Cancellation is allowed from any state before shipment; the
// returned states are reachable only through the returns flow and are
// rejected here.
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return from == StatusPending || from == StatusConfirmed || from == StatusProcessing
	}
	next, ok := forwardTransitions[from]
	return ok && next == to
}

// PaymentStatus tracks settlement progress.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

// PaymentStatusFor derives the payment state from amounts.
func PaymentStatusFor(paid, total float64) PaymentStatus {
	switch {
	case paid <= 0:
		return PaymentUnpaid
	case paid >= total:
		return PaymentPaid
	default:
		return PaymentPartial
	}
}

// Order is the aggregate header row.
type Order struct {
	ID             int64         `json:"id"`
	Type           Type          `json:"type"`
	CounterpartyID int64         `json:"counterpartyId"`
	Status         Status        `json:"status"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
	TotalAmount    float64       `json:"totalAmount"`
	PaidAmount     float64       `json:"paidAmount"`
	Note           string        `json:"note,omitempty"`
	CreatedBy      int64         `json:"createdBy"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	Items          []Item        `json:"items,omitempty"`
}

// Item is one order line. LineTotal is persisted, not recomputed, so
// reports agree with what was charged at order time.
type Item struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"orderId"`
	ProductID int64   `json:"productId"`
	Qty       int64   `json:"qty"`
	UnitPrice float64 `json:"unitPrice"`
	UnitCost  float64 `json:"unitCost"`
	LineTotal float64 `json:"lineTotal"`
}

// ListFilters narrows order listings.
type ListFilters struct {
	Type           Type
	Status         Status
	CounterpartyID int64
	From           time.Time
	To             time.Time
	Page           int
	Limit          int
}

var (
	ErrNotFound             = errors.New("orders: order not found")
	ErrProductNotFound      = errors.New("orders: product not found")
	ErrCounterpartyNotFound = errors.New("orders: counterparty not found")
	ErrInvalidType          = errors.New("orders: invalid order type")
	ErrInvalidTransition    = errors.New("orders: status transition not allowed")
	ErrNotCancellable       = errors.New("orders: order can no longer be cancelled")
	ErrInsufficientStock    = errors.New("orders: insufficient stock")
	ErrEmptyOrder           = errors.New("orders: order requires at least one item")
	ErrInactiveProduct      = errors.New("orders: product is inactive")
	ErrCounterpartyKind     = errors.New("orders: counterparty kind does not match order type")
)
