package domain

import "time"

type Product struct {
	ID                string    `json:"id"`
	SKU               string    `json:"sku"`
	Name              string    `json:"name"`
	Material          string    `json:"material"`
	PriceCents        int64     `json:"price_cents"`
	CostCents         int64     `json:"cost_cents"`
	QuantityOnHand    int       `json:"quantity_on_hand"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
}
