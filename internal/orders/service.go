package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/catalog"
	"github.com/bazarly/bazarly/internal/ledger"
	"github.com/bazarly/bazarly/internal/shared"
)

const auditModule = "ORDER"

// Store is the persistence surface the service needs.
type Store interface {
	WithTx(ctx context.Context, retries int, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64, typ Type) (Order, error)
	List(ctx context.Context, filters ListFilters) ([]Order, int, error)
}

// ProductCatalog resolves products and counterparties for validation
// and pricing. Satisfied by catalog.Service.
type ProductCatalog interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
	GetCounterparty(ctx context.Context, id int64) (catalog.Counterparty, error)
}

// IdempotencyStore dedupes retried create calls.
// Satisfied by shared.IdempotencyStore.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ConflictCounter observes transactions lost to concurrent writers.
type ConflictCounter interface {
	CountStockConflict()
}

// ReportInvalidator drops cached financial reports after a write.
// Satisfied by finance.Service.
type ReportInvalidator interface {
	BumpCache(ctx context.Context)
}

// Service implements order creation, status moves and payments.
type Service struct {
	store       Store
	catalog     ProductCatalog
	idempotency IdempotencyStore
	conflicts   ConflictCounter
	reports     ReportInvalidator
	retryBudget int
}

func NewService(store Store, cat ProductCatalog, idem IdempotencyStore, conflicts ConflictCounter, retryBudget int) *Service {
	if retryBudget < 1 {
		retryBudget = 3
	}
	return &Service{store: store, catalog: cat, idempotency: idem, conflicts: conflicts, retryBudget: retryBudget}
}

// SetReportInvalidator wires cache invalidation for financial reports.
// Optional; nil means writes leave caches to expire on TTL.
func (s *Service) SetReportInvalidator(inv ReportInvalidator) {
	s.reports = inv
}

func (s *Service) bumpReports(ctx context.Context) {
	if s.reports != nil {
		s.reports.BumpCache(ctx)
	}
}

// Create validates and persists an order as one transaction: header,
// lines, a stock movement per line and the audit entry. Sales are
// pre-checked against current stock so obviously doomed requests fail
// before opening a transaction; the ledger re-checks under the row lock,
// which is what actually arbitrates concurrent sales.
func (s *Service) Create(ctx context.Context, principal shared.Principal, req CreateOrderRequest, idempotencyKey string) (Order, error) {
	typ, err := ParseType(req.Type)
	if err != nil {
		return Order{}, err
	}
	if len(req.Items) == 0 {
		return Order{}, ErrEmptyOrder
	}

	counterparty, err := s.catalog.GetCounterparty(ctx, req.CounterpartyID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Order{}, fmt.Errorf("%w: counterparty %d", ErrCounterpartyNotFound, req.CounterpartyID)
		}
		return Order{}, err
	}
	if typ == TypeSale && counterparty.Kind != catalog.KindCustomer {
		return Order{}, ErrCounterpartyKind
	}
	if typ == TypePurchase && counterparty.Kind != catalog.KindSupplier {
		return Order{}, ErrCounterpartyKind
	}

	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return Order{}, err
	}

	items := make([]Item, 0, len(req.Items))
	total := 0.0
	for _, line := range req.Items {
		product, ok := products[line.ProductID]
		if !ok {
			return Order{}, fmt.Errorf("%w: product %d", ErrProductNotFound, line.ProductID)
		}
		if !product.IsActive {
			return Order{}, fmt.Errorf("%w: product %d", ErrInactiveProduct, line.ProductID)
		}
		if typ == TypeSale && product.StockQuantity < line.Qty {
			return Order{}, fmt.Errorf("%w: product %d has %d, need %d", ErrInsufficientStock, product.ID, product.StockQuantity, line.Qty)
		}
		price := product.SalePrice
		if typ == TypePurchase {
			price = product.CostPrice
		}
		if line.UnitPrice != nil {
			// Round at intake so later per-line refund sums cannot
			// drift past the stored order total.
			price = round2(*line.UnitPrice)
		}
		lineTotal := round2(price * float64(line.Qty))
		total += lineTotal
		items = append(items, Item{
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitPrice: price,
			UnitCost:  product.CostPrice,
			LineTotal: lineTotal,
		})
	}

	if idempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, auditModule); err != nil {
			return Order{}, err
		}
	}

	order := Order{
		Type:           typ,
		CounterpartyID: req.CounterpartyID,
		Status:         StatusPending,
		PaymentStatus:  PaymentUnpaid,
		TotalAmount:    round2(total),
		Note:           req.Note,
		CreatedBy:      principal.UserID,
		CreatedAt:      time.Now().UTC(),
	}

	err = s.store.WithTx(ctx, s.retryBudget, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		if err := tx.InsertItems(ctx, id, items); err != nil {
			return err
		}
		for _, item := range items {
			_, err := ledger.Apply(ctx, tx, ledger.ApplyInput{
				ProductID: item.ProductID,
				QtyChange: typ.DeltaSign() * item.Qty,
				OrderID:   id,
				Reason:    string(typ),
				ActorID:   principal.UserID,
			})
			if err != nil {
				return err
			}
		}
		return tx.Record(ctx, audit.Entry{
			TargetID:  strconv.FormatInt(id, 10),
			Module:    auditModule,
			Action:    "CREATE",
			NewState:  orderState(order, items),
			ChangedBy: principal.UserID,
		})
	})
	if err != nil {
		if idempotencyKey != "" {
			// Release the key so the caller's retry is not locked out
			// by a failure that never committed anything.
			_ = s.idempotency.Delete(ctx, idempotencyKey)
		}
		if errors.Is(err, ledger.ErrNegativeStock) {
			if s.conflicts != nil {
				s.conflicts.CountStockConflict()
			}
			return Order{}, fmt.Errorf("%w: %v", ErrInsufficientStock, err)
		}
		return Order{}, err
	}
	s.bumpReports(ctx)
	order.Items = items
	order.UpdatedAt = order.CreatedAt
	return order, nil
}

// Update applies a status move, a payment, or both to one order.
func (s *Service) Update(ctx context.Context, principal shared.Principal, typ Type, id int64, req UpdateOrderRequest) (Order, error) {
	if req.Status == "" && req.PaidAmount == nil {
		return Order{}, errors.New("orders: nothing to update")
	}
	if req.Status == string(StatusCancelled) {
		return s.cancel(ctx, principal, typ, id)
	}

	var updated Order
	err := s.store.WithTx(ctx, s.retryBudget, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id, typ)
		if err != nil {
			return err
		}
		before := order

		if req.Status != "" {
			next := Status(req.Status)
			if !CanTransition(order.Status, next) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
			}
			order.Status = next
		}
		if req.PaidAmount != nil {
			order.PaidAmount = round2(order.PaidAmount + *req.PaidAmount)
			if order.PaidAmount > order.TotalAmount {
				order.PaidAmount = order.TotalAmount
			}
			order.PaymentStatus = PaymentStatusFor(order.PaidAmount, order.TotalAmount)
		}
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		updated = order
		return tx.Record(ctx, audit.Entry{
			TargetID:  strconv.FormatInt(id, 10),
			Module:    auditModule,
			Action:    "UPDATE",
			OldState:  orderState(before, nil),
			NewState:  orderState(order, nil),
			ChangedBy: principal.UserID,
		})
	})
	if err != nil {
		return Order{}, err
	}
	s.bumpReports(ctx)
	return updated, nil
}

// cancel reverses the order's stock effect and marks it CANCELLED, all
// in one transaction. Shipped and later orders are rejected; use the
// returns flow instead.
func (s *Service) cancel(ctx context.Context, principal shared.Principal, typ Type, id int64) (Order, error) {
	var updated Order
	err := s.store.WithTx(ctx, s.retryBudget, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id, typ)
		if err != nil {
			return err
		}
		if !CanTransition(order.Status, StatusCancelled) {
			return fmt.Errorf("%w: status %s", ErrNotCancellable, order.Status)
		}
		before := order

		items, err := tx.GetItems(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			_, err := ledger.Apply(ctx, tx, ledger.ApplyInput{
				ProductID: item.ProductID,
				QtyChange: -typ.DeltaSign() * item.Qty,
				OrderID:   id,
				Reason:    "CANCEL",
				ActorID:   principal.UserID,
			})
			if err != nil {
				return err
			}
		}

		order.Status = StatusCancelled
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		updated = order
		return tx.Record(ctx, audit.Entry{
			TargetID:  strconv.FormatInt(id, 10),
			Module:    auditModule,
			Action:    "CANCEL",
			OldState:  orderState(before, nil),
			NewState:  orderState(order, nil),
			ChangedBy: principal.UserID,
		})
	})
	if err != nil {
		// Reversing a purchase can hit the floor when the received
		// stock was already sold on.
		if errors.Is(err, ledger.ErrNegativeStock) {
			return Order{}, fmt.Errorf("%w: stock already consumed", ErrNotCancellable)
		}
		return Order{}, err
	}
	s.bumpReports(ctx)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, typ Type, id int64) (Order, error) {
	return s.store.Get(ctx, id, typ)
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	}
	if filters.Limit > 100 {
		filters.Limit = 100
	}
	return s.store.List(ctx, filters)
}

// orderState is the audit snapshot shape for an order.
func orderState(o Order, items []Item) map[string]any {
	state := map[string]any{
		"type":          o.Type,
		"counterparty":  o.CounterpartyID,
		"status":        o.Status,
		"paymentStatus": o.PaymentStatus,
		"totalAmount":   o.TotalAmount,
		"paidAmount":    o.PaidAmount,
	}
	if len(items) > 0 {
		lines := make([]map[string]any, 0, len(items))
		for _, item := range items {
			lines = append(lines, map[string]any{
				"productId": item.ProductID,
				"qty":       item.Qty,
				"unitPrice": item.UnitPrice,
				"lineTotal": item.LineTotal,
			})
		}
		state["items"] = lines
	}
	return state
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
