package catalog

import (
	"errors"
	"time"
)

// Product represents a sellable/purchasable product.
type Product struct {
	ID            int64     `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	StockQuantity int64     `json:"stock_quantity"`
	MinStock      int64     `json:"min_stock"`
	CostPrice     float64   `json:"cost_price"`
	SalePrice     float64   `json:"sale_price"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CounterpartyKind distinguishes customers from suppliers.
type CounterpartyKind string

const (
	KindCustomer CounterpartyKind = "CUSTOMER"
	KindSupplier CounterpartyKind = "SUPPLIER"
)

// Counterparty is the party on the other side of an order.
type Counterparty struct {
	ID        int64            `json:"id"`
	Kind      CounterpartyKind `json:"kind"`
	Name      string           `json:"name"`
	Phone     string           `json:"phone"`
	IsActive  bool             `json:"is_active"`
	CreatedAt time.Time        `json:"created_at"`
}

// ErrNotFound indicates a missing product or counterparty.
var ErrNotFound = errors.New("catalog: not found")

// ErrDuplicateSKU indicates a SKU collision on create.
var ErrDuplicateSKU = errors.New("catalog: sku already exists")
