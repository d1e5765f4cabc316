package inventory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/engravehub/backoffice/internal/domain"
)

var ErrSKUTaken = errors.New("sku already in use")

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, sku, name, material, price_cents, cost_cents, quantity_on_hand, low_stock_threshold, created_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Material, &p.PriceCents, &p.CostCents,
		&p.QuantityOnHand, &p.LowStockThreshold, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, material, price_cents, cost_cents, quantity_on_hand, low_stock_threshold, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, p.ID, p.SKU, p.Name, p.Material, p.PriceCents, p.CostCents, p.QuantityOnHand, p.LowStockThreshold, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSKUTaken
		}
		return err
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY sku
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectProducts(rows)
}

// ListLowStock returns products at or below their low-stock threshold.
func (r *ProductRepository) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE quantity_on_hand <= low_stock_threshold
		ORDER BY quantity_on_hand
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectProducts(rows)
}

func collectProducts(rows *sql.Rows) ([]domain.Product, error) {
	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// AdjustStock applies a signed delta to quantity_on_hand (receiving stock,
// manual corrections). Returns nil when the product does not exist.
func (r *ProductRepository) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET quantity_on_hand = quantity_on_hand + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns+`
	`, id, delta))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// DecrementTx decrements quantity_on_hand inside a caller-supplied transaction
// and returns the remaining quantity. The quantity is not clamped at zero.
// Returns sql.ErrNoRows when the product row does not exist.
func (r *ProductRepository) DecrementTx(ctx context.Context, tx *sql.Tx, productID string, quantity int) (int, error) {
	var remaining int
	err := tx.QueryRowContext(ctx, `
		UPDATE products
		SET quantity_on_hand = quantity_on_hand - $2, updated_at = NOW()
		WHERE id = $1
		RETURNING quantity_on_hand
	`, productID, quantity).Scan(&remaining)
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
