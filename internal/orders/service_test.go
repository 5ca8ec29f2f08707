package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/catalog"
	"github.com/bazarly/bazarly/internal/ledger"
	"github.com/bazarly/bazarly/internal/shared"
)

// memoryStore emulates the transactional repository: WithTx serializes
// callers and discards all writes when fn fails, like a rollback.
type memoryStore struct {
	mu     sync.Mutex
	stock  map[int64]int64
	orders map[int64]Order
	items  map[int64][]Item
	moves  []ledger.Movement
	audits []audit.Entry
	nextID int64
}

func newMemoryStore(stock map[int64]int64) *memoryStore {
	return &memoryStore{
		stock:  stock,
		orders: map[int64]Order{},
		items:  map[int64][]Item{},
		nextID: 1,
	}
}

type memoryTx struct {
	store *memoryStore
	// staged copies, promoted on commit
	stock  map[int64]int64
	orders map[int64]Order
	items  map[int64][]Item
	moves  []ledger.Movement
	audits []audit.Entry
	nextID int64
}

func (m *memoryStore) WithTx(_ context.Context, _ int, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		store:  m,
		stock:  map[int64]int64{},
		orders: map[int64]Order{},
		items:  map[int64][]Item{},
		nextID: m.nextID,
	}
	for k, v := range m.stock {
		tx.stock[k] = v
	}
	for k, v := range m.orders {
		tx.orders[k] = v
	}
	for k, v := range m.items {
		tx.items[k] = append([]Item{}, v...)
	}

	if err := fn(context.Background(), tx); err != nil {
		return err
	}

	m.stock = tx.stock
	m.orders = tx.orders
	m.items = tx.items
	m.moves = append(m.moves, tx.moves...)
	m.audits = append(m.audits, tx.audits...)
	m.nextID = tx.nextID
	return nil
}

func (m *memoryStore) Get(_ context.Context, id int64, typ Type) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Type != typ {
		return Order{}, ErrNotFound
	}
	o.Items = append([]Item{}, m.items[id]...)
	return o, nil
}

func (m *memoryStore) List(_ context.Context, filters ListFilters) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if filters.Type != "" && o.Type != filters.Type {
			continue
		}
		if filters.Status != "" && o.Status != filters.Status {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (t *memoryTx) InsertOrder(_ context.Context, o Order) (int64, error) {
	o.ID = t.nextID
	t.nextID++
	t.orders[o.ID] = o
	return o.ID, nil
}

func (t *memoryTx) InsertItems(_ context.Context, orderID int64, items []Item) error {
	t.items[orderID] = append(t.items[orderID], items...)
	return nil
}

func (t *memoryTx) GetOrderForUpdate(_ context.Context, id int64, typ Type) (Order, error) {
	o, ok := t.orders[id]
	if !ok || o.Type != typ {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (t *memoryTx) GetItems(_ context.Context, orderID int64) ([]Item, error) {
	return t.items[orderID], nil
}

func (t *memoryTx) UpdateOrder(_ context.Context, o Order) error {
	t.orders[o.ID] = o
	return nil
}

func (t *memoryTx) GetStockForUpdate(_ context.Context, productID int64) (ledger.Stock, error) {
	qty, ok := t.stock[productID]
	if !ok {
		return ledger.Stock{}, ledger.ErrProductNotFound
	}
	return ledger.Stock{ProductID: productID, Qty: qty}, nil
}

func (t *memoryTx) UpdateStock(_ context.Context, productID, qty int64) error {
	t.stock[productID] = qty
	return nil
}

func (t *memoryTx) InsertMovement(_ context.Context, mv ledger.Movement) (int64, error) {
	mv.ID = int64(len(t.store.moves)+len(t.moves)) + 1
	t.moves = append(t.moves, mv)
	return mv.ID, nil
}

func (t *memoryTx) Record(_ context.Context, e audit.Entry) error {
	t.audits = append(t.audits, e)
	return nil
}

type stubCatalog struct {
	products       map[int64]catalog.Product
	counterparties map[int64]catalog.Counterparty
}

func (c *stubCatalog) GetProducts(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := map[int64]catalog.Product{}
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *stubCatalog) GetCounterparty(_ context.Context, id int64) (catalog.Counterparty, error) {
	cp, ok := c.counterparties[id]
	if !ok {
		return catalog.Counterparty{}, catalog.ErrNotFound
	}
	return cp, nil
}

type stubIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (s *stubIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = map[string]bool{}
	}
	if s.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = true
	return nil
}

func (s *stubIdempotency) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func testFixture(stock int64) (*Service, *memoryStore, *stubIdempotency) {
	store := newMemoryStore(map[int64]int64{1: stock})
	cat := &stubCatalog{
		products: map[int64]catalog.Product{
			1: {ID: 1, SKU: "SKU-1", Name: "Widget", StockQuantity: stock, CostPrice: 4, SalePrice: 10, IsActive: true},
		},
		counterparties: map[int64]catalog.Counterparty{
			100: {ID: 100, Kind: catalog.KindCustomer, Name: "Retail Walk-in"},
			200: {ID: 200, Kind: catalog.KindSupplier, Name: "Widget Supply Co"},
		},
	}
	idem := &stubIdempotency{}
	return NewService(store, cat, idem, nil, 3), store, idem
}

var testPrincipal = shared.Principal{UserID: 42, Username: "clerk", Role: shared.RoleStaff}

func TestCreateSaleMovesStockAndAudits(t *testing.T) {
	svc, store, _ := testFixture(10)

	order, err := svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 100,
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 3}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, StatusPending, order.Status)
	require.Equal(t, 30.0, order.TotalAmount)
	require.Equal(t, int64(7), store.stock[1])

	require.Len(t, store.moves, 1)
	mv := store.moves[0]
	require.Equal(t, int64(-3), mv.QtyChange)
	require.Equal(t, "SALE", mv.Reason)
	require.Equal(t, int64(10), mv.StockBefore)
	require.Equal(t, int64(7), mv.StockAfter)

	require.Len(t, store.audits, 1)
	require.Equal(t, "ORDER", store.audits[0].Module)
	require.Equal(t, "CREATE", store.audits[0].Action)
}

func TestCreatePurchaseIncrementsStock(t *testing.T) {
	svc, store, _ := testFixture(10)

	order, err := svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
		Type:           "PURCHASE",
		CounterpartyID: 200,
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 5}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, 20.0, order.TotalAmount) // cost price 4 x 5
	require.Equal(t, int64(15), store.stock[1])
}

func TestCreateSaleInsufficientStockLeavesNothingBehind(t *testing.T) {
	svc, store, _ := testFixture(2)

	_, err := svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 100,
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 5}},
	}, "")
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, int64(2), store.stock[1])
	require.Empty(t, store.orders)
	require.Empty(t, store.moves)
	require.Empty(t, store.audits)
}

func TestCreateUnknownProductAndCounterpartyAreNotFound(t *testing.T) {
	svc, _, _ := testFixture(10)

	_, err := svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 100,
		Items:          []CreateOrderItemRequest{{ProductID: 99, Qty: 1}},
	}, "")
	require.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 999,
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 1}},
	}, "")
	require.ErrorIs(t, err, ErrCounterpartyNotFound)
}

func TestCreateRejectsInactiveProduct(t *testing.T) {
	store := newMemoryStore(map[int64]int64{1: 10})
	cat := &stubCatalog{
		products: map[int64]catalog.Product{
			1: {ID: 1, SKU: "SKU-1", Name: "Widget", StockQuantity: 10, SalePrice: 10},
		},
		counterparties: map[int64]catalog.Counterparty{
			100: {ID: 100, Kind: catalog.KindCustomer},
		},
	}
	svc := NewService(store, cat, &stubIdempotency{}, nil, 3)

	_, err := svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 100,
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 1}},
	}, "")
	require.ErrorIs(t, err, ErrInactiveProduct)
}

func TestCreateRoundsOverriddenUnitPrice(t *testing.T) {
	svc, _, _ := testFixture(10)

	// sub-cent override must not survive into the stored line
	price := 4.999
	order, err := svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 100,
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 3, UnitPrice: &price}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, 5.0, order.Items[0].UnitPrice)
	require.Equal(t, 15.0, order.Items[0].LineTotal)
	require.Equal(t, 15.0, order.TotalAmount)
}

func TestCreateRejectsCounterpartyKindMismatch(t *testing.T) {
	svc, _, _ := testFixture(10)

	_, err := svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 200, // supplier on a sale
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 1}},
	}, "")
	require.ErrorIs(t, err, ErrCounterpartyKind)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	const initial = 3
	const attempts = 10
	// catalog snapshot is stale on purpose: every caller passes the
	// pre-check, the transactional stock check must arbitrate
	store := newMemoryStore(map[int64]int64{1: initial})
	cat := &stubCatalog{
		products: map[int64]catalog.Product{
			1: {ID: 1, SKU: "SKU-1", Name: "Widget", StockQuantity: attempts, SalePrice: 10, IsActive: true},
		},
		counterparties: map[int64]catalog.Counterparty{
			100: {ID: 100, Kind: catalog.KindCustomer},
		},
	}
	svc := NewService(store, cat, &stubIdempotency{}, nil, 3)

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
				Type:           "SALE",
				CounterpartyID: 100,
				Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 1}},
			}, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, failed := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrInsufficientStock)
			failed++
		}
	}
	require.Equal(t, initial, succeeded)
	require.Equal(t, attempts-initial, failed)
	require.Equal(t, int64(0), store.stock[1])
	require.Len(t, store.moves, initial)
}

func TestIdempotentCreate(t *testing.T) {
	svc, store, _ := testFixture(10)

	req := CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 100,
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 1}},
	}
	_, err := svc.Create(context.Background(), testPrincipal, req, "key-1")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), testPrincipal, req, "key-1")
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Equal(t, int64(9), store.stock[1])
	require.Len(t, store.moves, 1)
}

func TestIdempotencyKeyReleasedOnFailure(t *testing.T) {
	// catalog snapshot says 10 but the journal holds 2, so the failure
	// happens inside the transaction, after the key is taken
	store := newMemoryStore(map[int64]int64{1: 2})
	cat := &stubCatalog{
		products: map[int64]catalog.Product{
			1: {ID: 1, SKU: "SKU-1", Name: "Widget", StockQuantity: 10, SalePrice: 10, IsActive: true},
		},
		counterparties: map[int64]catalog.Counterparty{
			100: {ID: 100, Kind: catalog.KindCustomer},
		},
	}
	idem := &stubIdempotency{}
	svc := NewService(store, cat, idem, nil, 3)

	req := CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 100,
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 5}},
	}
	_, err := svc.Create(context.Background(), testPrincipal, req, "key-1")
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Empty(t, idem.keys)

	// smaller retry under the same key must go through
	req.Items[0].Qty = 2
	_, err = svc.Create(context.Background(), testPrincipal, req, "key-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), store.stock[1])
}

func TestStatusStateMachine(t *testing.T) {
	svc, _, _ := testFixture(10)

	order, err := svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 100,
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 1}},
	}, "")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), testPrincipal, TypeSale, order.ID, UpdateOrderRequest{Status: "SHIPPED"})
	require.ErrorIs(t, err, ErrInvalidTransition)

	for _, next := range []string{"CONFIRMED", "PROCESSING", "SHIPPED", "DELIVERED"} {
		updated, err := svc.Update(context.Background(), testPrincipal, TypeSale, order.ID, UpdateOrderRequest{Status: next})
		require.NoError(t, err)
		require.Equal(t, Status(next), updated.Status)
	}
}

func TestCancelRestoresStock(t *testing.T) {
	svc, store, _ := testFixture(10)

	order, err := svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 100,
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 4}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, int64(6), store.stock[1])

	cancelled, err := svc.Update(context.Background(), testPrincipal, TypeSale, order.ID, UpdateOrderRequest{Status: "CANCELLED"})
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, int64(10), store.stock[1])

	// cancellation movement is journaled too
	require.Len(t, store.moves, 2)
	require.Equal(t, int64(4), store.moves[1].QtyChange)
	require.Equal(t, "CANCEL", store.moves[1].Reason)
}

func TestCancelRejectedAfterShipment(t *testing.T) {
	svc, _, _ := testFixture(10)

	order, err := svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 100,
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 1}},
	}, "")
	require.NoError(t, err)

	for _, next := range []string{"CONFIRMED", "PROCESSING", "SHIPPED"} {
		_, err = svc.Update(context.Background(), testPrincipal, TypeSale, order.ID, UpdateOrderRequest{Status: next})
		require.NoError(t, err)
	}

	_, err = svc.Update(context.Background(), testPrincipal, TypeSale, order.ID, UpdateOrderRequest{Status: "CANCELLED"})
	require.ErrorIs(t, err, ErrNotCancellable)
}

func TestPaymentProgression(t *testing.T) {
	svc, _, _ := testFixture(10)

	order, err := svc.Create(context.Background(), testPrincipal, CreateOrderRequest{
		Type:           "SALE",
		CounterpartyID: 100,
		Items:          []CreateOrderItemRequest{{ProductID: 1, Qty: 3}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, PaymentUnpaid, order.PaymentStatus)

	partial := 10.0
	updated, err := svc.Update(context.Background(), testPrincipal, TypeSale, order.ID, UpdateOrderRequest{PaidAmount: &partial})
	require.NoError(t, err)
	require.Equal(t, PaymentPartial, updated.PaymentStatus)
	require.Equal(t, 10.0, updated.PaidAmount)

	rest := 25.0 // overpayment clamps to the total
	updated, err = svc.Update(context.Background(), testPrincipal, TypeSale, order.ID, UpdateOrderRequest{PaidAmount: &rest})
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, updated.PaymentStatus)
	require.Equal(t, 30.0, updated.PaidAmount)
}
