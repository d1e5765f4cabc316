package reports

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/engravehub/backoffice/internal/domain"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Dashboard aggregates the numbers the back-office landing page shows.
func (r *ReportRepository) Dashboard(ctx context.Context) (*domain.DashboardReport, error) {
	report := &domain.DashboardReport{
		OrdersByStatus: make(map[domain.OrderStatus]int),
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM orders
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status domain.OrderStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		report.OrdersByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents), 0)
		FROM orders
		WHERE status = $1
	`, domain.OrderStatusCompleted).Scan(&report.RevenueCents)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(cost_cents), 0)
		FROM losses
	`).Scan(&report.LossCount, &report.LossCostCents)
	if err != nil {
		return nil, fmt.Errorf("sum losses: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM products
		WHERE quantity_on_hand <= low_stock_threshold
	`).Scan(&report.LowStockCount)
	if err != nil {
		return nil, fmt.Errorf("count low stock: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM quotes
		WHERE status = $1
	`, domain.QuoteStatusOpen).Scan(&report.OpenQuoteCount)
	if err != nil {
		return nil, fmt.Errorf("count open quotes: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM orders
		WHERE status = $1 AND updated_at >= NOW() - INTERVAL '30 days'
	`, domain.OrderStatusCompleted).Scan(&report.CompletedLastMonth)
	if err != nil {
		return nil, fmt.Errorf("count recent completions: %w", err)
	}

	return report, nil
}
