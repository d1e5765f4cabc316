package domain

type DashboardReport struct {
	OrdersByStatus     map[OrderStatus]int `json:"orders_by_status"`
	RevenueCents       int64               `json:"revenue_cents"`
	LossCount          int                 `json:"loss_count"`
	LossCostCents      int64               `json:"loss_cost_cents"`
	LowStockCount      int                 `json:"low_stock_count"`
	OpenQuoteCount     int                 `json:"open_quote_count"`
	CompletedLastMonth int                 `json:"completed_last_month"`
}
