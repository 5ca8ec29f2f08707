package finance

import (
	"errors"
	"time"
)

// Expense categories. Everything unknown lands in otherExpense.
const (
	CategoryProductCost   = "productCost"
	CategoryPackagingCost = "packagingCost"
	CategoryCourierCost   = "courierCost"
	CategoryAdCost        = "adCost"
	CategoryOtherExpense  = "otherExpense"
)

// Categories lists the known expense buckets in report order.
var Categories = []string{
	CategoryProductCost,
	CategoryPackagingCost,
	CategoryCourierCost,
	CategoryAdCost,
	CategoryOtherExpense,
}

// Expense is one operating cost row.
type Expense struct {
	ID        int64     `json:"id"`
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
	Note      string    `json:"note,omitempty"`
	SpentAt   time.Time `json:"spentAt"`
	CreatedBy int64     `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProfitLossReport aggregates a date range.
type ProfitLossReport struct {
	From     time.Time          `json:"from"`
	To       time.Time          `json:"to"`
	Revenue  float64            `json:"revenue"`
	Refunds  float64            `json:"refunds"`
	COGS     float64            `json:"cogs"`
	Expenses map[string]float64 `json:"expenses"`
	Net      float64            `json:"net"`
}

// DailyLedgerReport summarizes one calendar day.
type DailyLedgerReport struct {
	Date             string  `json:"date"`
	SaleOrders       int     `json:"saleOrders"`
	PurchaseOrders   int     `json:"purchaseOrders"`
	Revenue          float64 `json:"revenue"`
	Refunds          float64 `json:"refunds"`
	PaymentsReceived float64 `json:"paymentsReceived"`
	Expenses         float64 `json:"expenses"`
	Net              float64 `json:"net"`
}

// DailyStats is the raw per-day aggregate from storage.
type DailyStats struct {
	SaleOrders       int
	PurchaseOrders   int
	Revenue          float64
	Refunds          float64
	PaymentsReceived float64
	Expenses         float64
}

var ErrInvalidRange = errors.New("finance: invalid date range")
