package domain

import "time"

// Production order statuses.
const (
	ProdOrderPlanned    = "PLANNED"
	ProdOrderInProgress = "IN_PROGRESS"
	ProdOrderClosed     = "CLOSED"
)

// ProductionOrder 对应 production_orders 表
type ProductionOrder struct {
	ProdOrderID string     `db:"prod_order_id" json:"prod_order_id"` // UUID
	VariantID   string     `db:"variant_id" json:"variant_id"`
	QtyPlanned  int        `db:"qty_planned" json:"qty_planned"`
	Status      string     `db:"status" json:"status"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
