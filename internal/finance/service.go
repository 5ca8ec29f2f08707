package finance

import (
	"context"
	"math"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/shared"
)

// Service aggregates financial reports. Reports are cached under a
// versioned key and coalesced with singleflight so a burst of dashboard
// reads triggers at most one aggregation per key.
type Service struct {
	store Store
	cache *Cache
	group singleflight.Group
}

func NewService(store Store, cache *Cache) *Service {
	return &Service{store: store, cache: cache}
}

// ProfitLoss computes revenue, refunds, COGS and categorized expenses
// over the range. Unknown expense categories fold into otherExpense.
func (s *Service) ProfitLoss(ctx context.Context, from, to time.Time) (ProfitLossReport, error) {
	if to.Before(from) {
		return ProfitLossReport{}, ErrInvalidRange
	}

	key, err := s.cache.BuildKey(ctx, "finance", "pl", from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return ProfitLossReport{}, err
	}

	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		var report ProfitLossReport
		err := s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
			return s.buildProfitLoss(ctx, from, to)
		})
		return report, err
	})
	if err != nil {
		return ProfitLossReport{}, err
	}
	return value.(ProfitLossReport), nil
}

func (s *Service) buildProfitLoss(ctx context.Context, from, to time.Time) (ProfitLossReport, error) {
	revenue, err := s.store.RevenueBetween(ctx, from, to)
	if err != nil {
		return ProfitLossReport{}, err
	}
	refunds, err := s.store.RefundsBetween(ctx, from, to)
	if err != nil {
		return ProfitLossReport{}, err
	}
	cogs, err := s.store.COGSBetween(ctx, from, to)
	if err != nil {
		return ProfitLossReport{}, err
	}
	raw, err := s.store.ExpensesByCategory(ctx, from, to)
	if err != nil {
		return ProfitLossReport{}, err
	}

	expenses := make(map[string]float64, len(Categories))
	for _, category := range Categories {
		expenses[category] = 0
	}
	totalExpenses := 0.0
	for category, amount := range raw {
		if _, known := expenses[category]; !known {
			category = CategoryOtherExpense
		}
		expenses[category] += amount
		totalExpenses += amount
	}

	report := ProfitLossReport{
		From:     from,
		To:       to,
		Revenue:  round2(revenue),
		Refunds:  round2(refunds),
		COGS:     round2(cogs),
		Expenses: expenses,
		Net:      round2(revenue - refunds - cogs - totalExpenses),
	}
	return report, nil
}

// DailyLedger summarizes one calendar day.
func (s *Service) DailyLedger(ctx context.Context, day time.Time) (DailyLedgerReport, error) {
	date := day.Format("2006-01-02")
	key, err := s.cache.BuildKey(ctx, "finance", "daily", date)
	if err != nil {
		return DailyLedgerReport{}, err
	}

	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		var report DailyLedgerReport
		err := s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
			stats, err := s.store.DailyStats(ctx, day)
			if err != nil {
				return nil, err
			}
			return DailyLedgerReport{
				Date:             date,
				SaleOrders:       stats.SaleOrders,
				PurchaseOrders:   stats.PurchaseOrders,
				Revenue:          round2(stats.Revenue),
				Refunds:          round2(stats.Refunds),
				PaymentsReceived: round2(stats.PaymentsReceived),
				Expenses:         round2(stats.Expenses),
				Net:              round2(stats.Revenue - stats.Refunds - stats.Expenses),
			}, nil
		})
		return report, err
	})
	if err != nil {
		return DailyLedgerReport{}, err
	}
	return value.(DailyLedgerReport), nil
}

// AddExpense records one expense row and its audit entry in one
// transaction, then invalidates cached reports. A failed audit write
// rolls the expense back.
func (s *Service) AddExpense(ctx context.Context, principal shared.Principal, e Expense) (Expense, error) {
	if _, known := categorySet[e.Category]; !known {
		e.Category = CategoryOtherExpense
	}
	if e.SpentAt.IsZero() {
		e.SpentAt = time.Now().UTC()
	}
	e.CreatedBy = principal.UserID

	var created Expense
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		created, err = tx.InsertExpense(ctx, e)
		if err != nil {
			return err
		}
		return tx.Record(ctx, audit.Entry{
			TargetID:  strconv.FormatInt(created.ID, 10),
			Module:    "FINANCE",
			Action:    "EXPENSE",
			NewState:  created,
			ChangedBy: principal.UserID,
		})
	})
	if err != nil {
		return Expense{}, err
	}
	_ = s.cache.Bump(ctx)
	return created, nil
}

// BumpCache invalidates cached reports. Called by order and return
// writers after commit.
func (s *Service) BumpCache(ctx context.Context) {
	_ = s.cache.Bump(ctx)
}

var categorySet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Categories))
	for _, c := range Categories {
		set[c] = struct{}{}
	}
	return set
}()

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
