package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// LineItem is one entry in an order. Catalog items carry a ProductID and are
// tracked against stock; custom one-off engravings carry only a CustomRef and
// never touch inventory.
type LineItem struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id,omitempty"`
	CustomRef      string `json:"custom_ref,omitempty"`
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Resolvable reports whether the line item references a stock-tracked product.
func (li LineItem) Resolvable() bool {
	return li.ProductID != ""
}

type Order struct {
	ID            string      `json:"id"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	Items         []LineItem  `json:"items"`
	Status        OrderStatus `json:"status"`
	SubtotalCents int64       `json:"subtotal_cents"`
	ShippingCents int64       `json:"shipping_cents"`
	TotalCents    int64       `json:"total_cents"`
	Notes         string      `json:"notes,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}
