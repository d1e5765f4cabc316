package quotes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/engravehub/backoffice/internal/domain"
	"github.com/engravehub/backoffice/internal/orders"
)

var (
	ErrQuoteNotFound    = errors.New("quote not found")
	ErrAlreadyConverted = errors.New("quote already converted")
	ErrQuoteNotOpen     = errors.New("quote is not open")
)

type QuoteRepository struct {
	db        *sql.DB
	orderRepo *orders.OrderRepository
}

func NewQuoteRepository(db *sql.DB, orderRepo *orders.OrderRepository) *QuoteRepository {
	return &QuoteRepository{db: db, orderRepo: orderRepo}
}

func (r *QuoteRepository) Create(ctx context.Context, quote *domain.Quote) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	quote.ID = uuid.New().String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quotes (id, customer_name, customer_email, status, subtotal_cents, shipping_cents, total_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, quote.ID, quote.CustomerName, quote.CustomerEmail, quote.Status,
		quote.SubtotalCents, quote.ShippingCents, quote.TotalCents, quote.CreatedAt)
	if err != nil {
		return err
	}

	for i := range quote.Items {
		item := &quote.Items[i]
		item.ID = uuid.New().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO quote_items (id, quote_id, product_id, custom_ref, description, quantity, unit_price_cents)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		`, item.ID, quote.ID, item.ProductID, item.CustomRef, item.Description, item.Quantity, item.UnitPriceCents)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *QuoteRepository) GetByID(ctx context.Context, id string) (*domain.Quote, error) {
	quote := &domain.Quote{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_name, customer_email, status, subtotal_cents, shipping_cents, total_cents, created_at
		FROM quotes
		WHERE id = $1
	`, id).Scan(&quote.ID, &quote.CustomerName, &quote.CustomerEmail, &quote.Status,
		&quote.SubtotalCents, &quote.ShippingCents, &quote.TotalCents, &quote.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	items, err := r.quoteItems(ctx, id)
	if err != nil {
		return nil, err
	}
	quote.Items = items

	return quote, nil
}

func (r *QuoteRepository) quoteItems(ctx context.Context, quoteID string) ([]domain.LineItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(product_id::text, ''), custom_ref, description, quantity, unit_price_cents
		FROM quote_items
		WHERE quote_id = $1
		ORDER BY id
	`, quoteID)
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

// Convert turns an open quote into a pending order and marks the quote
// converted, atomically. A quote converts at most once: the quote row is
// locked and its status re-checked inside the transaction.
func (r *QuoteRepository) Convert(ctx context.Context, quoteID string) (*domain.Order, error) {
	quote, err := r.GetByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, ErrQuoteNotFound
	}

	var order *domain.Order

	err = r.orderRepo.InTx(ctx, func(tx *sql.Tx) error {
		var status domain.QuoteStatus
		err := tx.QueryRowContext(ctx, `
			SELECT status FROM quotes WHERE id = $1 FOR UPDATE
		`, quoteID).Scan(&status)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrQuoteNotFound
			}
			return err
		}

		switch status {
		case domain.QuoteStatusOpen:
		case domain.QuoteStatusConverted:
			return ErrAlreadyConverted
		default:
			return fmt.Errorf("%w: %s", ErrQuoteNotOpen, status)
		}

		items := make([]domain.LineItem, len(quote.Items))
		copy(items, quote.Items)
		for i := range items {
			items[i].ID = ""
		}

		order = &domain.Order{
			CustomerName:  quote.CustomerName,
			CustomerEmail: quote.CustomerEmail,
			Items:         items,
			Status:        domain.OrderStatusPending,
			SubtotalCents: quote.SubtotalCents,
			ShippingCents: quote.ShippingCents,
			TotalCents:    quote.TotalCents,
			Notes:         "converted from quote " + quoteID,
			CreatedAt:     time.Now().UTC(),
		}
		if err := r.orderRepo.CreateTx(ctx, tx, order); err != nil {
			return fmt.Errorf("create order from quote: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE quotes SET status = $1 WHERE id = $2
		`, domain.QuoteStatusConverted, quoteID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}
