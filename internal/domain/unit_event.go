package domain

import (
	"encoding/json"
	"time"
)

// Event types written to the unit_events journal. The journal is the only
// durable history of operator actions; the packaging gate reads it to
// answer "was the pack kit scanned".
const (
	EventUnitCreated     = "UNIT_CREATED"
	EventUnitAssigned    = "UNIT_ASSIGNED_TO_VARIANT"
	EventFlashOK         = "FLASH_OK"
	EventAssemblyDone    = "ASSEMBLY_DONE"
	EventTestPass        = "TEST_PASS"
	EventTestFail        = "TEST_FAIL"
	EventPackKitScanned  = "PACK_KIT_SCANNED"
	EventPackFinalized   = "PACK_FINALIZED"
	EventMoveToStock     = "MOVE_TO_STOCK"
	EventInventoryMove   = "INVENTORY_MOVE"
	EventPrintJobCreated = "PRINT_JOB_CREATED"
	EventPrintJobDone    = "PRINT_JOB_DONE"
	EventPrintJobFail    = "PRINT_JOB_FAIL"
)

// UnitEvent 对应 unit_events 表（append-only journal, never updated）
type UnitEvent struct {
	EventID    string          `db:"event_id" json:"event_id"` // UUID
	SN         *string         `db:"sn" json:"sn,omitempty"`   // nullable: print jobs may have no unit
	EventType  string          `db:"event_type" json:"event_type"`
	StationID  *string         `db:"station_id" json:"station_id,omitempty"`
	OperatorID *string         `db:"operator_id" json:"operator_id,omitempty"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
