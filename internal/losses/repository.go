package losses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/engravehub/backoffice/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

type LossRepository struct {
	db *sql.DB
}

func NewLossRepository(db *sql.DB) *LossRepository {
	return &LossRepository{db: db}
}

// Record inserts the loss and decrements the product's stock in a single
// transaction. The loss cost is valued at the product's current unit cost.
func (r *LossRepository) Record(ctx context.Context, productID string, quantity int, reason string) (*domain.Loss, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var costCents int64
	err = tx.QueryRowContext(ctx, `
		SELECT cost_cents
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&costCents)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("read product for loss: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET quantity_on_hand = quantity_on_hand - $2, updated_at = NOW()
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("decrement stock for loss: %w", err)
	}

	loss := &domain.Loss{
		ID:         uuid.New().String(),
		ProductID:  productID,
		Quantity:   quantity,
		Reason:     reason,
		CostCents:  costCents * int64(quantity),
		RecordedAt: time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO losses (id, product_id, quantity, reason, cost_cents, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, loss.ID, loss.ProductID, loss.Quantity, loss.Reason, loss.CostCents, loss.RecordedAt)
	if err != nil {
		return nil, fmt.Errorf("insert loss: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return loss, nil
}

func (r *LossRepository) List(ctx context.Context) ([]domain.Loss, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, reason, cost_cents, recorded_at
		FROM losses
		ORDER BY recorded_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []domain.Loss
	for rows.Next() {
		var loss domain.Loss
		if err := rows.Scan(&loss.ID, &loss.ProductID, &loss.Quantity, &loss.Reason, &loss.CostCents, &loss.RecordedAt); err != nil {
			return nil, err
		}
		result = append(result, loss)
	}

	return result, rows.Err()
}
