package orders

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/engravehub/backoffice/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// InTx runs fn inside a transaction, rolling back on error.
func (r *OrderRepository) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return r.InTx(ctx, func(tx *sql.Tx) error {
		return r.CreateTx(ctx, tx, order)
	})
}

// CreateTx inserts the order and its items inside a caller-supplied
// transaction, so quote conversion can create the order and flip the quote
// atomically.
func (r *OrderRepository) CreateTx(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	order.ID = uuid.New().String()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_name, customer_email, status, subtotal_cents, shipping_cents, total_cents, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, order.ID, order.CustomerName, order.CustomerEmail, order.Status,
		order.SubtotalCents, order.ShippingCents, order.TotalCents, order.Notes, order.CreatedAt)
	if err != nil {
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, custom_ref, description, quantity, unit_price_cents)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		`, item.ID, order.ID, item.ProductID, item.CustomRef, item.Description, item.Quantity, item.UnitPriceCents)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_name, customer_email, status, subtotal_cents, shipping_cents, total_cents, notes, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.CustomerName, &order.CustomerEmail, &order.Status,
		&order.SubtotalCents, &order.ShippingCents, &order.TotalCents, &order.Notes, &order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	items, err := r.itemsForOrder(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// GetForUpdate re-reads the order inside tx with a row lock on the orders row.
// A concurrent completion of the same order blocks here until the first
// transaction commits, then observes the updated status.
func (r *OrderRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := tx.QueryRowContext(ctx, `
		SELECT id, customer_name, customer_email, status, subtotal_cents, shipping_cents, total_cents, notes, created_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&order.ID, &order.CustomerName, &order.CustomerEmail, &order.Status,
		&order.SubtotalCents, &order.ShippingCents, &order.TotalCents, &order.Notes, &order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	items, err := r.itemsForOrder(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *OrderRepository) itemsForOrder(ctx context.Context, q querier, orderID string) ([]domain.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, COALESCE(product_id::text, ''), custom_ref, description, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.LineItem
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.CustomRef, &item.Description, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// UpdateStatus performs the plain, non-completing status update. Returns nil
// when the order does not exist.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

func (r *OrderRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id string, status domain.OrderStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	return err
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_name, customer_email, status, subtotal_cents, shipping_cents, total_cents, notes, created_at
		FROM orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.CustomerName, &order.CustomerEmail, &order.Status,
			&order.SubtotalCents, &order.ShippingCents, &order.TotalCents, &order.Notes, &order.CreatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.LineItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, id, COALESCE(product_id::text, ''), custom_ref, description, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.LineItem
		if err := itemRows.Scan(&orderID, &item.ID, &item.ProductID, &item.CustomRef, &item.Description, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}
