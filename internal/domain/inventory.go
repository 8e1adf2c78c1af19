package domain

import "time"

// MovementProduceFinished is written when a packed unit enters finished
// goods stock.
const MovementProduceFinished = "PRODUCE_FINISHED"

// RefTypeUnit marks an inventory movement that references a serialized unit.
const RefTypeUnit = "UNIT"

// InventoryMovement 对应 inventory_ledger 表（append-only ledger）
type InventoryMovement struct {
	MovementID   string    `db:"movement_id" json:"movement_id"` // UUID
	ItemID       string    `db:"item_id" json:"item_id"`
	LocationID   string    `db:"location_id" json:"location_id"`
	MovementType string    `db:"movement_type" json:"movement_type"`
	Qty          int       `db:"qty" json:"qty"`
	RefType      *string   `db:"ref_type" json:"ref_type,omitempty"`
	RefID        *string   `db:"ref_id" json:"ref_id,omitempty"`
	UnitCost     *float64  `db:"unit_cost" json:"unit_cost,omitempty"`
	CreatedBy    *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
