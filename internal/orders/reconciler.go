package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/engravehub/backoffice/internal/domain"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidStatus    = errors.New("invalid order status")
	ErrAlreadyCompleted = errors.New("order already completed")
	ErrNoLineItems      = errors.New("order has no line items")
)

var reconcilerMeter = otel.Meter("orders/reconciler")

// OrderStore is the order persistence the reconciler needs. GetForUpdate must
// lock the order row for the remainder of tx.
type OrderStore interface {
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.Order, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id string, status domain.OrderStatus) error
}

// StockStore decrements a product's on-hand quantity inside tx and returns the
// remaining quantity. It must return sql.ErrNoRows when the product row does
// not exist.
type StockStore interface {
	DecrementTx(ctx context.Context, tx *sql.Tx, productID string, quantity int) (remaining int, err error)
}

// TxRunner atomically commits or rolls back every operation performed with the
// tx handle passed to fn.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Reconciler owns the order lifecycle transition to completed: flipping the
// status and decrementing inventory for every line item happen in one
// transaction, and happen at most once per order.
type Reconciler struct {
	orders OrderStore
	stock  StockStore
	txr    TxRunner
	logger *slog.Logger

	completedOrders  metric.Int64Counter
	decrementedUnits metric.Int64Counter
}

func NewReconciler(orderStore OrderStore, stockStore StockStore, txr TxRunner, logger *slog.Logger) (*Reconciler, error) {
	completedOrders, err := reconcilerMeter.Int64Counter("orders_completed_total",
		metric.WithDescription("Orders transitioned to completed"))
	if err != nil {
		return nil, err
	}

	decrementedUnits, err := reconcilerMeter.Int64Counter("inventory_units_decremented_total",
		metric.WithDescription("Stock units decremented by order completion"))
	if err != nil {
		return nil, err
	}

	return &Reconciler{
		orders:           orderStore,
		stock:            stockStore,
		txr:              txr,
		logger:           logger,
		completedOrders:  completedOrders,
		decrementedUnits: decrementedUnits,
	}, nil
}

// TransitionStatus applies a requested status to an order. Transitions to any
// status other than completed are simple field updates with no inventory side
// effect. A transition to completed re-reads the order under a row lock,
// refuses to run twice, decrements stock for each resolvable line item, and
// marks the order completed, all in a single transaction.
func (r *Reconciler) TransitionStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	if status != domain.OrderStatusCompleted {
		order, err := r.orders.UpdateStatus(ctx, orderID, status)
		if err != nil {
			return nil, fmt.Errorf("update order status: %w", err)
		}
		if order == nil {
			return nil, ErrOrderNotFound
		}
		return order, nil
	}

	return r.complete(ctx, orderID)
}

func (r *Reconciler) complete(ctx context.Context, orderID string) (*domain.Order, error) {
	var order *domain.Order
	var units int64

	err := r.txr.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = r.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("read order for completion: %w", err)
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status == domain.OrderStatusCompleted {
			return ErrAlreadyCompleted
		}
		if len(order.Items) == 0 {
			return ErrNoLineItems
		}

		for _, item := range order.Items {
			if !item.Resolvable() {
				r.logger.Warn("line item has no product reference, skipping stock decrement",
					"order_id", orderID, "item_id", item.ID, "custom_ref", item.CustomRef)
				continue
			}

			remaining, err := r.stock.DecrementTx(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					r.logger.Warn("line item references a missing product, skipping stock decrement",
						"order_id", orderID, "product_id", item.ProductID)
					continue
				}
				return fmt.Errorf("decrement stock for product %s: %w", item.ProductID, err)
			}

			if remaining < 0 {
				r.logger.Warn("completion drove stock negative",
					"order_id", orderID, "product_id", item.ProductID, "quantity_on_hand", remaining)
			}
			units += int64(item.Quantity)
		}

		if err := r.orders.UpdateStatusTx(ctx, tx, orderID, domain.OrderStatusCompleted); err != nil {
			return fmt.Errorf("mark order completed: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatusCompleted

	r.completedOrders.Add(ctx, 1)
	r.decrementedUnits.Add(ctx, units)
	r.logger.Info("order completed", "order_id", orderID, "units_decremented", units)

	return order, nil
}
