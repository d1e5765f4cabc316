package domain

import "time"

// Loss records material written off outside of sales: engraving misfires,
// damaged blanks, shrinkage. Recording a loss decrements stock.
type Loss struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason"`
	CostCents  int64     `json:"cost_cents"`
	RecordedAt time.Time `json:"recorded_at"`
}
