package domain

import "time"

type OrderCompletedEvent struct {
	OrderID       string     `json:"order_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	Items         []LineItem `json:"items"`
	TotalCents    int64      `json:"total_cents"`
	CompletedAt   time.Time  `json:"completed_at"`
}
