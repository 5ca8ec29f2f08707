package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/shared"
)

type stubFinanceStore struct {
	revenue  float64
	refunds  float64
	cogs     float64
	expenses map[string]float64
	daily    DailyStats

	queries   int
	inserted  []Expense
	audits    []audit.Entry
	recordErr error
}

func (s *stubFinanceStore) RevenueBetween(_ context.Context, _, _ time.Time) (float64, error) {
	s.queries++
	return s.revenue, nil
}

func (s *stubFinanceStore) RefundsBetween(_ context.Context, _, _ time.Time) (float64, error) {
	return s.refunds, nil
}

func (s *stubFinanceStore) COGSBetween(_ context.Context, _, _ time.Time) (float64, error) {
	return s.cogs, nil
}

func (s *stubFinanceStore) ExpensesByCategory(_ context.Context, _, _ time.Time) (map[string]float64, error) {
	return s.expenses, nil
}

// WithTx stages writes and promotes them only when fn succeeds, like a
// rollback on failure.
func (s *stubFinanceStore) WithTx(_ context.Context, fn func(context.Context, TxStore) error) error {
	tx := &stubFinanceTx{store: s}
	if err := fn(context.Background(), tx); err != nil {
		return err
	}
	s.inserted = append(s.inserted, tx.inserted...)
	s.audits = append(s.audits, tx.audits...)
	return nil
}

func (s *stubFinanceStore) DailyStats(_ context.Context, _ time.Time) (DailyStats, error) {
	return s.daily, nil
}

type stubFinanceTx struct {
	store    *stubFinanceStore
	inserted []Expense
	audits   []audit.Entry
}

func (t *stubFinanceTx) InsertExpense(_ context.Context, e Expense) (Expense, error) {
	e.ID = int64(len(t.store.inserted)+len(t.inserted)) + 1
	t.inserted = append(t.inserted, e)
	return e, nil
}

func (t *stubFinanceTx) Record(_ context.Context, e audit.Entry) error {
	if t.store.recordErr != nil {
		return t.store.recordErr
	}
	t.audits = append(t.audits, e)
	return nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, time.Minute)
}

var window = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func TestProfitLossMath(t *testing.T) {
	store := &stubFinanceStore{
		revenue: 1000,
		refunds: 100,
		cogs:    400,
		expenses: map[string]float64{
			CategoryCourierCost: 50,
			CategoryAdCost:      30,
			"misc":              20, // unknown category folds into other
		},
	}
	svc := NewService(store, newTestCache(t))

	report, err := svc.ProfitLoss(context.Background(), window, window.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Equal(t, 1000.0, report.Revenue)
	require.Equal(t, 100.0, report.Refunds)
	require.Equal(t, 400.0, report.COGS)
	require.Equal(t, 50.0, report.Expenses[CategoryCourierCost])
	require.Equal(t, 20.0, report.Expenses[CategoryOtherExpense])
	// 1000 - 100 - 400 - (50+30+20)
	require.Equal(t, 400.0, report.Net)
}

func TestProfitLossRejectsInvertedRange(t *testing.T) {
	svc := NewService(&stubFinanceStore{}, newTestCache(t))
	_, err := svc.ProfitLoss(context.Background(), window, window.AddDate(0, 0, -1))
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestProfitLossCachedUntilBump(t *testing.T) {
	store := &stubFinanceStore{revenue: 500}
	svc := NewService(store, newTestCache(t))

	_, err := svc.ProfitLoss(context.Background(), window, window.AddDate(0, 1, 0))
	require.NoError(t, err)
	_, err = svc.ProfitLoss(context.Background(), window, window.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Equal(t, 1, store.queries)

	svc.BumpCache(context.Background())
	store.revenue = 700

	report, err := svc.ProfitLoss(context.Background(), window, window.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Equal(t, 2, store.queries)
	require.Equal(t, 700.0, report.Revenue)
}

func TestDailyLedger(t *testing.T) {
	store := &stubFinanceStore{daily: DailyStats{
		SaleOrders:       4,
		PurchaseOrders:   1,
		Revenue:          200,
		Refunds:          20,
		PaymentsReceived: 150,
		Expenses:         30,
	}}
	svc := NewService(store, newTestCache(t))

	report, err := svc.DailyLedger(context.Background(), window)
	require.NoError(t, err)
	require.Equal(t, "2026-08-01", report.Date)
	require.Equal(t, 4, report.SaleOrders)
	require.Equal(t, 150.0, report.PaymentsReceived)
	require.Equal(t, 150.0, report.Net) // 200 - 20 - 30
}

func TestAddExpenseAuditsAndInvalidates(t *testing.T) {
	store := &stubFinanceStore{revenue: 100}
	svc := NewService(store, newTestCache(t))

	// warm the cache first
	_, err := svc.ProfitLoss(context.Background(), window, window.AddDate(0, 1, 0))
	require.NoError(t, err)

	expense, err := svc.AddExpense(context.Background(), shared.Principal{UserID: 3}, Expense{
		Category: "not-a-category",
		Amount:   42,
	})
	require.NoError(t, err)
	require.Equal(t, CategoryOtherExpense, expense.Category)
	require.Equal(t, int64(3), expense.CreatedBy)

	require.Len(t, store.audits, 1)
	require.Equal(t, "FINANCE", store.audits[0].Module)
	require.Equal(t, "EXPENSE", store.audits[0].Action)

	// cache was bumped, the next read recomputes
	_, err = svc.ProfitLoss(context.Background(), window, window.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Equal(t, 2, store.queries)
}

func TestAddExpenseFailedAuditLeavesNoRow(t *testing.T) {
	store := &stubFinanceStore{recordErr: errors.New("audit store unavailable")}
	svc := NewService(store, newTestCache(t))

	_, err := svc.AddExpense(context.Background(), shared.Principal{UserID: 3}, Expense{
		Category: CategoryAdCost,
		Amount:   42,
	})
	require.ErrorIs(t, err, store.recordErr)
	require.Empty(t, store.inserted)
	require.Empty(t, store.audits)
}
