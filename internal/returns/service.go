package returns

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/ledger"
	"github.com/bazarly/bazarly/internal/orders"
	"github.com/bazarly/bazarly/internal/shared"
)

const auditModule = "RETURN"

// Store is the persistence surface the service needs.
type Store interface {
	WithTx(ctx context.Context, retries int, fn func(context.Context, TxRepository) error) error
	ListByOrder(ctx context.Context, orderID int64) ([]Return, error)
}

// ReportInvalidator drops cached financial reports after a write.
type ReportInvalidator interface {
	BumpCache(ctx context.Context)
}

// Service creates refund documents and reverses their stock effect.
type Service struct {
	store       Store
	reports     ReportInvalidator
	retryBudget int
}

func NewService(store Store, retryBudget int) *Service {
	if retryBudget < 1 {
		retryBudget = 3
	}
	return &Service{store: store, retryBudget: retryBudget}
}

// SetReportInvalidator wires cache invalidation for financial reports.
func (s *Service) SetReportInvalidator(inv ReportInvalidator) {
	s.reports = inv
}

// Create reverses order lines back into (or out of) stock. With no
// explicit lines the whole remaining order is returned. The refund
// amount is derived from the returned quantities at the original unit
// prices and capped by the order total across all returns.
func (s *Service) Create(ctx context.Context, principal shared.Principal, req CreateReturnRequest) (Return, error) {
	typ, err := orders.ParseType(req.OrderType)
	if err != nil {
		return Return{}, err
	}

	var created Return
	err = s.store.WithTx(ctx, s.retryBudget, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, req.OrderID, typ)
		if err != nil {
			return err
		}
		if !returnable(order) {
			return fmt.Errorf("%w: status %s", ErrNotReturnable, order.Status)
		}

		items, err := tx.GetOrderItems(ctx, req.OrderID)
		if err != nil {
			return err
		}
		returnedQty, err := tx.SumReturnedQtyByLine(ctx, req.OrderID)
		if err != nil {
			return err
		}

		lines, amount, err := resolveLines(items, returnedQty, req.Lines)
		if err != nil {
			return err
		}

		alreadyRefunded, err := tx.SumReturnedAmount(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if round2(alreadyRefunded+amount) > order.TotalAmount {
			return fmt.Errorf("%w: refunded %.2f + %.2f exceeds total %.2f",
				ErrAlreadyReturned, alreadyRefunded, amount, order.TotalAmount)
		}

		ret := Return{
			OrderID:   req.OrderID,
			Amount:    amount,
			Reason:    req.Reason,
			CreatedBy: principal.UserID,
			CreatedAt: time.Now().UTC(),
		}
		retID, err := tx.InsertReturn(ctx, ret)
		if err != nil {
			return err
		}
		ret.ID = retID
		ret.Items = lines
		for i := range ret.Items {
			ret.Items[i].ReturnID = retID
		}
		if err := tx.InsertReturnItems(ctx, retID, ret.Items); err != nil {
			return err
		}

		// sale returns put stock back, purchase returns hand it back
		for _, line := range ret.Items {
			_, err := ledger.Apply(ctx, tx, ledger.ApplyInput{
				ProductID: line.ProductID,
				QtyChange: -typ.DeltaSign() * line.Qty,
				OrderID:   req.OrderID,
				Reason:    typ.ReverseReason(),
				ActorID:   principal.UserID,
			})
			if err != nil {
				return err
			}
		}

		newStatus := orders.StatusPartiallyReturned
		if fullyReturned(items, returnedQty, ret.Items) {
			newStatus = orders.StatusReturned
		}
		if err := tx.SetOrderStatus(ctx, req.OrderID, newStatus); err != nil {
			return err
		}

		created = ret
		return tx.Record(ctx, audit.Entry{
			TargetID:  strconv.FormatInt(retID, 10),
			Module:    auditModule,
			Action:    "CREATE",
			OldState:  map[string]any{"orderStatus": order.Status, "refunded": alreadyRefunded},
			NewState:  map[string]any{"orderStatus": newStatus, "amount": amount, "lines": len(ret.Items)},
			ChangedBy: principal.UserID,
		})
	})
	if err != nil {
		if errors.Is(err, ledger.ErrNegativeStock) {
			return Return{}, fmt.Errorf("%w: returned stock already consumed", ErrNotReturnable)
		}
		return Return{}, err
	}
	if s.reports != nil {
		s.reports.BumpCache(ctx)
	}
	return created, nil
}

// ListByOrder returns prior refunds of an order.
func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]Return, error) {
	return s.store.ListByOrder(ctx, orderID)
}

// returnable gates which order states accept a return. Sales must have
// reached the customer; purchases only need to be past PENDING since
// received goods can go back to the supplier at any point.
func returnable(o orders.Order) bool {
	switch o.Status {
	case orders.StatusPartiallyReturned:
		return true
	case orders.StatusDelivered:
		return true
	case orders.StatusConfirmed, orders.StatusProcessing, orders.StatusShipped:
		return o.Type == orders.TypePurchase
	default:
		return false
	}
}

// resolveLines expands the request into concrete return items and the
// derived refund amount. An empty request means everything remaining.
func resolveLines(items []orders.Item, returnedQty map[int64]int64, req []ReturnLineRequest) ([]ReturnItem, float64, error) {
	byID := make(map[int64]orders.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	if len(req) == 0 {
		var lines []ReturnItem
		amount := 0.0
		for _, item := range items {
			remaining := item.Qty - returnedQty[item.ID]
			if remaining <= 0 {
				continue
			}
			lines = append(lines, ReturnItem{OrderItemID: item.ID, ProductID: item.ProductID, Qty: remaining})
			amount += item.UnitPrice * float64(remaining)
		}
		if len(lines) == 0 {
			return nil, 0, ErrNothingToReturn
		}
		return lines, round2(amount), nil
	}

	var lines []ReturnItem
	amount := 0.0
	for _, line := range req {
		item, ok := byID[line.OrderItemID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: line %d", ErrUnknownLine, line.OrderItemID)
		}
		remaining := item.Qty - returnedQty[item.ID]
		if line.Qty > remaining {
			return nil, 0, fmt.Errorf("%w: line %d has %d left, requested %d", ErrQtyExceeded, item.ID, remaining, line.Qty)
		}
		lines = append(lines, ReturnItem{OrderItemID: item.ID, ProductID: item.ProductID, Qty: line.Qty})
		amount += item.UnitPrice * float64(line.Qty)
	}
	return lines, round2(amount), nil
}

func fullyReturned(items []orders.Item, prior map[int64]int64, current []ReturnItem) bool {
	total := map[int64]int64{}
	for k, v := range prior {
		total[k] = v
	}
	for _, line := range current {
		total[line.OrderItemID] += line.Qty
	}
	for _, item := range items {
		if total[item.ID] < item.Qty {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
