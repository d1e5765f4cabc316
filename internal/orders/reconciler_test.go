package orders

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/engravehub/backoffice/internal/domain"
)

// fakeBackend emulates the order and product tables with rollback: writes go
// to live state, and the tx runner restores a snapshot when the transaction
// function fails.
type fakeBackend struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	stock  map[string]int

	decrementCalls  int
	failOnDecrement int // fail the Nth decrement call, 0 means never
	statusUpdates   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		orders: make(map[string]*domain.Order),
		stock:  make(map[string]int),
	}
}

func (f *fakeBackend) addOrder(order domain.Order) {
	f.orders[order.ID] = &order
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.LineItem(nil), o.Items...)
	return &cp
}

func (f *fakeBackend) snapshot() (map[string]*domain.Order, map[string]int) {
	orders := make(map[string]*domain.Order, len(f.orders))
	for id, o := range f.orders {
		orders[id] = copyOrder(o)
	}
	stock := make(map[string]int, len(f.stock))
	for id, q := range f.stock {
		stock[id] = q
	}
	return orders, stock
}

func (f *fakeBackend) restore(orders map[string]*domain.Order, stock map[string]int) {
	f.orders = orders
	f.stock = stock
}

func (f *fakeBackend) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	order.Status = status
	f.statusUpdates++
	return copyOrder(order), nil
}

func (f *fakeBackend) GetForUpdate(_ context.Context, _ *sql.Tx, id string) (*domain.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(order), nil
}

func (f *fakeBackend) UpdateStatusTx(_ context.Context, _ *sql.Tx, id string, status domain.OrderStatus) error {
	order, ok := f.orders[id]
	if !ok {
		return errors.New("order vanished mid-transaction")
	}
	order.Status = status
	f.statusUpdates++
	return nil
}

func (f *fakeBackend) DecrementTx(_ context.Context, _ *sql.Tx, productID string, quantity int) (int, error) {
	f.decrementCalls++
	if f.failOnDecrement > 0 && f.decrementCalls == f.failOnDecrement {
		return 0, errors.New("connection reset by peer")
	}

	current, ok := f.stock[productID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	f.stock[productID] = current - quantity
	return current - quantity, nil
}

// InTx serializes transactions with a mutex, standing in for the row lock the
// real store takes, and restores pre-transaction state on error.
func (f *fakeBackend) InTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	orders, stock := f.snapshot()
	if err := fn(nil); err != nil {
		f.restore(orders, stock)
		return err
	}
	return nil
}

func newTestReconciler(t *testing.T, backend *fakeBackend) *Reconciler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := NewReconciler(backend, backend, backend, logger)
	if err != nil {
		t.Fatalf("failed to create reconciler: %v", err)
	}
	return r
}

func TestTransitionStatus_Completion(t *testing.T) {
	t.Run("decrements stock and marks completed", func(t *testing.T) {
		backend := newFakeBackend()
		backend.stock["P1"] = 10
		backend.addOrder(domain.Order{
			ID:     "O1",
			Status: domain.OrderStatusPending,
			Items:  []domain.LineItem{{ID: "i1", ProductID: "P1", Quantity: 3}},
		})

		r := newTestReconciler(t, backend)

		order, err := r.TransitionStatus(context.Background(), "O1", domain.OrderStatusCompleted)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != domain.OrderStatusCompleted {
			t.Errorf("expected status completed, got %s", order.Status)
		}
		if backend.stock["P1"] != 7 {
			t.Errorf("expected stock 7, got %d", backend.stock["P1"])
		}
		if backend.orders["O1"].Status != domain.OrderStatusCompleted {
			t.Errorf("expected stored status completed, got %s", backend.orders["O1"].Status)
		}
	})

	t.Run("second completion is rejected and leaves stock unchanged", func(t *testing.T) {
		backend := newFakeBackend()
		backend.stock["P1"] = 10
		backend.addOrder(domain.Order{
			ID:     "O1",
			Status: domain.OrderStatusPending,
			Items:  []domain.LineItem{{ID: "i1", ProductID: "P1", Quantity: 3}},
		})

		r := newTestReconciler(t, backend)

		if _, err := r.TransitionStatus(context.Background(), "O1", domain.OrderStatusCompleted); err != nil {
			t.Fatalf("first completion failed: %v", err)
		}

		_, err := r.TransitionStatus(context.Background(), "O1", domain.OrderStatusCompleted)
		if !errors.Is(err, ErrAlreadyCompleted) {
			t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
		}
		if backend.stock["P1"] != 7 {
			t.Errorf("expected stock still 7, got %d", backend.stock["P1"])
		}
	})

	t.Run("decrement failure rolls back everything", func(t *testing.T) {
		backend := newFakeBackend()
		backend.stock["P1"] = 10
		backend.stock["P2"] = 5
		backend.failOnDecrement = 2
		backend.addOrder(domain.Order{
			ID:     "O1",
			Status: domain.OrderStatusPending,
			Items: []domain.LineItem{
				{ID: "i1", ProductID: "P1", Quantity: 3},
				{ID: "i2", ProductID: "P2", Quantity: 1},
			},
		})

		r := newTestReconciler(t, backend)

		_, err := r.TransitionStatus(context.Background(), "O1", domain.OrderStatusCompleted)
		if err == nil {
			t.Fatal("expected error")
		}
		if backend.stock["P1"] != 10 {
			t.Errorf("expected P1 stock rolled back to 10, got %d", backend.stock["P1"])
		}
		if backend.stock["P2"] != 5 {
			t.Errorf("expected P2 stock unchanged at 5, got %d", backend.stock["P2"])
		}
		if backend.orders["O1"].Status != domain.OrderStatusPending {
			t.Errorf("expected status still pending, got %s", backend.orders["O1"].Status)
		}
	})

	t.Run("custom line items are skipped", func(t *testing.T) {
		backend := newFakeBackend()
		backend.stock["P1"] = 10
		backend.addOrder(domain.Order{
			ID:     "O1",
			Status: domain.OrderStatusPending,
			Items: []domain.LineItem{
				{ID: "i1", ProductID: "P1", Quantity: 2},
				{ID: "i2", CustomRef: "engraving-job-42", Quantity: 1},
			},
		})

		r := newTestReconciler(t, backend)

		order, err := r.TransitionStatus(context.Background(), "O1", domain.OrderStatusCompleted)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != domain.OrderStatusCompleted {
			t.Errorf("expected status completed, got %s", order.Status)
		}
		if backend.stock["P1"] != 8 {
			t.Errorf("expected stock 8, got %d", backend.stock["P1"])
		}
	})

	t.Run("missing product row is skipped, not fatal", func(t *testing.T) {
		backend := newFakeBackend()
		backend.stock["P1"] = 10
		backend.addOrder(domain.Order{
			ID:     "O1",
			Status: domain.OrderStatusPending,
			Items: []domain.LineItem{
				{ID: "i1", ProductID: "P1", Quantity: 2},
				{ID: "i2", ProductID: "retired-product", Quantity: 5},
			},
		})

		r := newTestReconciler(t, backend)

		if _, err := r.TransitionStatus(context.Background(), "O1", domain.OrderStatusCompleted); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backend.stock["P1"] != 8 {
			t.Errorf("expected stock 8, got %d", backend.stock["P1"])
		}
	})

	t.Run("stock may go negative", func(t *testing.T) {
		backend := newFakeBackend()
		backend.stock["P1"] = 2
		backend.addOrder(domain.Order{
			ID:     "O1",
			Status: domain.OrderStatusPending,
			Items:  []domain.LineItem{{ID: "i1", ProductID: "P1", Quantity: 5}},
		})

		r := newTestReconciler(t, backend)

		if _, err := r.TransitionStatus(context.Background(), "O1", domain.OrderStatusCompleted); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backend.stock["P1"] != -3 {
			t.Errorf("expected stock -3, got %d", backend.stock["P1"])
		}
	})

	t.Run("empty order cannot complete", func(t *testing.T) {
		backend := newFakeBackend()
		backend.addOrder(domain.Order{
			ID:     "O2",
			Status: domain.OrderStatusPending,
		})

		r := newTestReconciler(t, backend)

		_, err := r.TransitionStatus(context.Background(), "O2", domain.OrderStatusCompleted)
		if !errors.Is(err, ErrNoLineItems) {
			t.Fatalf("expected ErrNoLineItems, got %v", err)
		}
		if backend.orders["O2"].Status != domain.OrderStatusPending {
			t.Errorf("expected status still pending, got %s", backend.orders["O2"].Status)
		}
	})

	t.Run("missing order", func(t *testing.T) {
		backend := newFakeBackend()
		r := newTestReconciler(t, backend)

		_, err := r.TransitionStatus(context.Background(), "nope", domain.OrderStatusCompleted)
		if !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})

	t.Run("concurrent completions of the same order decrement once", func(t *testing.T) {
		backend := newFakeBackend()
		backend.stock["P1"] = 10
		backend.addOrder(domain.Order{
			ID:     "O1",
			Status: domain.OrderStatusPending,
			Items:  []domain.LineItem{{ID: "i1", ProductID: "P1", Quantity: 3}},
		})

		r := newTestReconciler(t, backend)

		results := make(chan error, 2)
		for range 2 {
			go func() {
				_, err := r.TransitionStatus(context.Background(), "O1", domain.OrderStatusCompleted)
				results <- err
			}()
		}

		var succeeded, conflicted int
		for range 2 {
			err := <-results
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAlreadyCompleted):
				conflicted++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}

		if succeeded != 1 || conflicted != 1 {
			t.Fatalf("expected one success and one conflict, got %d/%d", succeeded, conflicted)
		}
		if backend.stock["P1"] != 7 {
			t.Errorf("expected stock 7 after single decrement, got %d", backend.stock["P1"])
		}
	})
}

func TestTransitionStatus_NonCompleting(t *testing.T) {
	t.Run("plain field update with no stock side effect", func(t *testing.T) {
		backend := newFakeBackend()
		backend.stock["P1"] = 10
		backend.addOrder(domain.Order{
			ID:     "O1",
			Status: domain.OrderStatusPending,
			Items:  []domain.LineItem{{ID: "i1", ProductID: "P1", Quantity: 3}},
		})

		r := newTestReconciler(t, backend)

		order, err := r.TransitionStatus(context.Background(), "O1", domain.OrderStatusProcessing)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != domain.OrderStatusProcessing {
			t.Errorf("expected status processing, got %s", order.Status)
		}
		if backend.decrementCalls != 0 {
			t.Errorf("expected no decrement calls, got %d", backend.decrementCalls)
		}
		if backend.stock["P1"] != 10 {
			t.Errorf("expected stock untouched at 10, got %d", backend.stock["P1"])
		}
	})

	t.Run("missing order", func(t *testing.T) {
		backend := newFakeBackend()
		r := newTestReconciler(t, backend)

		_, err := r.TransitionStatus(context.Background(), "nope", domain.OrderStatusCancelled)
		if !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})

	t.Run("invalid status value", func(t *testing.T) {
		backend := newFakeBackend()
		r := newTestReconciler(t, backend)

		_, err := r.TransitionStatus(context.Background(), "O1", domain.OrderStatus("shipped"))
		if !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
	})
}
