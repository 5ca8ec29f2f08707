package orders

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	Type           string                   `json:"type" validate:"required,oneof=SALE PURCHASE"`
	CounterpartyID int64                    `json:"counterpartyId" validate:"required,gt=0"`
	Note           string                   `json:"note" validate:"max=500"`
	Items          []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CreateOrderItemRequest is one requested order line. UnitPrice may be
// omitted, in which case the catalog price for the order type applies.
type CreateOrderItemRequest struct {
	ProductID int64    `json:"productId" validate:"required,gt=0"`
	Qty       int64    `json:"qty" validate:"required,gt=0"`
	UnitPrice *float64 `json:"unitPrice" validate:"omitempty,gte=0"`
}

// UpdateOrderRequest carries a status move, a payment, or both.
type UpdateOrderRequest struct {
	Status     string   `json:"status" validate:"omitempty,oneof=CONFIRMED PROCESSING SHIPPED DELIVERED CANCELLED"`
	PaidAmount *float64 `json:"paidAmount" validate:"omitempty,gte=0"`
}
