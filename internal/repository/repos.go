package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
)

// Sentinel errors shared by all repository implementations. Services map
// these to the caller-facing failure modes; anything else is a store error.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// UnitsRepo owns serialized_units. Status writes are single-record updates;
// ordering rules live in the lifecycle service.
type UnitsRepo interface {
	// CreateGeneric allocates a fresh serial (YYMM-GN-NNNNN) and inserts the
	// unit with status GENERIC. Serial allocation is atomic against
	// concurrent callers; a collision is retried internally.
	CreateGeneric(ctx context.Context, prodOrderID *string) (*domain.SerializedUnit, error)
	Get(ctx context.Context, sn string) (*domain.SerializedUnit, error)
	List(ctx context.Context) ([]domain.SerializedUnit, error)
	SetVariant(ctx context.Context, sn, variantID, assignedCode, status string) error
	SetFlashResult(ctx context.Context, sn string, hwRev, fwVersion, fwBuildHash *string, status string) error
	// SetTestOutcome sets the tested status and refreshes detected
	// hardware/firmware fields from the fixture payload when present.
	SetTestOutcome(ctx context.Context, sn, status string, hwRev, fwVersion, fwBuildHash *string) error
	SetStatus(ctx context.Context, sn, status string) error
}

// ReferenceRepo reads immutable reference data: variants, variant rules
// and packaging kits.
type ReferenceRepo interface {
	GetVariant(ctx context.Context, variantID string) (*domain.ProductVariant, error)
	GetVariantRules(ctx context.Context, variantID string) (*domain.VariantRules, error)
	GetPackagingKit(ctx context.Context, kitID string) (*domain.PackagingKit, error)
}

// TestRunsRepo owns the append-only test_runs history.
type TestRunsRepo interface {
	Insert(ctx context.Context, run *domain.TestRun) error
	LatestBySN(ctx context.Context, sn string) (*domain.TestRun, error)
}

// EventsRepo owns the append-only unit_events journal.
type EventsRepo interface {
	Append(ctx context.Context, ev *domain.UnitEvent) error
	// LatestBySNAndType returns the most recent journal entry of the given
	// type for a unit, or ErrNotFound.
	LatestBySNAndType(ctx context.Context, sn, eventType string) (*domain.UnitEvent, error)
}

// PrintJobsRepo owns print_jobs. ClaimNext is the one operation with a
// hard atomicity contract: each QUEUED job goes to at most one claimant.
type PrintJobsRepo interface {
	Insert(ctx context.Context, job *domain.PrintJob) (*domain.PrintJob, error)
	Get(ctx context.Context, printJobID string) (*domain.PrintJob, error)
	ListBySN(ctx context.Context, sn string) ([]domain.PrintJob, error)
	// ClaimNext atomically hands the oldest QUEUED job (or a CLAIMED job
	// whose claim is older than lease, when lease > 0) to agentID.
	// Returns ErrNotFound when nothing is claimable.
	ClaimNext(ctx context.Context, agentID string, lease time.Duration) (*domain.PrintJob, error)
	// MarkDone / MarkFail transition a non-terminal job. Calling either on
	// an already-terminal job is accepted silently and changes nothing.
	MarkDone(ctx context.Context, printJobID string) error
	MarkFail(ctx context.Context, printJobID, errMsg string) error
}

// InventoryRepo appends to the inventory ledger, modeled as one
// append-only table.
type InventoryRepo interface {
	InsertMovement(ctx context.Context, m *domain.InventoryMovement) error
}

// ProductionOrdersRepo owns production_orders.
type ProductionOrdersRepo interface {
	Insert(ctx context.Context, po *domain.ProductionOrder) (*domain.ProductionOrder, error)
	Get(ctx context.Context, prodOrderID string) (*domain.ProductionOrder, error)
}
