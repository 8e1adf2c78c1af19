package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/repository"

	"go.uber.org/zap"
)

// ErrStatusOrder is returned when an operation would move a unit backward
// along the lifecycle chain. Status only ever advances.
var ErrStatusOrder = errors.New("unit status cannot move backward")

// ErrGateBlocked marks a finalize attempt rejected by the packaging gate.
// The full blocker list travels in the GateResult next to it.
var ErrGateBlocked = errors.New("packaging gate blocked")

// LifecycleService applies operator actions to serialized units. Every
// operation writes exactly one journal entry naming the action and the
// operator; an action whose lookups fail writes nothing at all.
type LifecycleService interface {
	CreateGenericUnit(ctx context.Context, req CreateGenericUnitRequest) (*domain.SerializedUnit, error)
	AssignVariant(ctx context.Context, req AssignVariantRequest) error
	RecordFlash(ctx context.Context, req RecordFlashRequest) error
	RecordAssembly(ctx context.Context, req RecordAssemblyRequest) error
	RecordTestResult(ctx context.Context, req RecordTestResultRequest) error
	ScanKit(ctx context.Context, req ScanKitRequest) error
	FinalizePack(ctx context.Context, req FinalizePackRequest) (*GateResult, error)
	MoveToStock(ctx context.Context, req MoveToStockRequest) error
	GetUnit(ctx context.Context, sn string) (*UnitDetails, error)
}

type CreateGenericUnitRequest struct {
	ProdOrderID *string
	StationID   *string
	OperatorID  string
}

type AssignVariantRequest struct {
	SN           string
	VariantID    string
	AssignedCode string
	StationID    *string
	OperatorID   string
}

type RecordFlashRequest struct {
	SN                string
	HwRevDetected     *string
	FwVersionDetected *string
	FwBuildHash       *string
	StationID         *string
	OperatorID        string
}

type RecordAssemblyRequest struct {
	SN         string
	Notes      *string
	StationID  *string
	OperatorID string
}

type RecordTestResultRequest struct {
	SN                string
	FixtureID         string
	Result            string // PASS | FAIL
	Metrics           json.RawMessage
	FwReadback        json.RawMessage
	HwRevDetected     *string
	FwVersionDetected *string
	FwBuildHash       *string
	StationID         *string
}

type ScanKitRequest struct {
	SN         string
	KitID      string
	StationID  *string
	OperatorID string
}

type FinalizePackRequest struct {
	SN         string
	StationID  *string
	OperatorID string
}

type MoveToStockRequest struct {
	SN             string
	FinishedItemID string
	LocationID     string
	StationID      *string
	OperatorID     string
}

// UnitDetails is the get-unit view: current record, latest test run (nil
// when none) and the current gate verdict.
type UnitDetails struct {
	Unit     *domain.SerializedUnit `json:"unit"`
	LastTest *domain.TestRun        `json:"last_test"`
	Gate     *GateResult            `json:"gate"`
}

type lifecycleService struct {
	units     repository.UnitsRepo
	reference repository.ReferenceRepo
	testRuns  repository.TestRunsRepo
	events    repository.EventsRepo
	inventory repository.InventoryRepo
	gate      GateService
	logger    *zap.Logger
}

func NewLifecycleService(
	units repository.UnitsRepo,
	reference repository.ReferenceRepo,
	testRuns repository.TestRunsRepo,
	events repository.EventsRepo,
	inventory repository.InventoryRepo,
	gate GateService,
	logger *zap.Logger,
) LifecycleService {
	return &lifecycleService{
		units:     units,
		reference: reference,
		testRuns:  testRuns,
		events:    events,
		inventory: inventory,
		gate:      gate,
		logger:    logger,
	}
}

func (s *lifecycleService) CreateGenericUnit(ctx context.Context, req CreateGenericUnitRequest) (*domain.SerializedUnit, error) {
	unit, err := s.units.CreateGeneric(ctx, req.ProdOrderID)
	if err != nil {
		return nil, err
	}
	s.journal(ctx, &unit.SN, domain.EventUnitCreated, req.StationID, req.OperatorID, map[string]any{
		"prod_order_id": req.ProdOrderID,
	})
	s.logger.Info("generic unit created", zap.String("sn", unit.SN))
	return unit, nil
}

func (s *lifecycleService) AssignVariant(ctx context.Context, req AssignVariantRequest) error {
	unit, err := s.units.Get(ctx, req.SN)
	if err != nil {
		return err
	}
	if _, err := s.reference.GetVariant(ctx, req.VariantID); err != nil {
		return fmt.Errorf("variant %s: %w", req.VariantID, err)
	}
	if !domain.CanAdvance(unit.Status, domain.StatusAssigned) {
		return ErrStatusOrder
	}
	if err := s.units.SetVariant(ctx, req.SN, req.VariantID, req.AssignedCode, domain.StatusAssigned); err != nil {
		return err
	}
	s.journal(ctx, &req.SN, domain.EventUnitAssigned, req.StationID, req.OperatorID, map[string]any{
		"variant_id":            req.VariantID,
		"assigned_product_code": req.AssignedCode,
	})
	return nil
}

func (s *lifecycleService) RecordFlash(ctx context.Context, req RecordFlashRequest) error {
	unit, err := s.units.Get(ctx, req.SN)
	if err != nil {
		return err
	}
	if !domain.CanAdvance(unit.Status, domain.StatusFlashed) {
		return ErrStatusOrder
	}
	if err := s.units.SetFlashResult(ctx, req.SN, req.HwRevDetected, req.FwVersionDetected, req.FwBuildHash, domain.StatusFlashed); err != nil {
		return err
	}
	s.journal(ctx, &req.SN, domain.EventFlashOK, req.StationID, req.OperatorID, map[string]any{
		"hw_rev_detected":     req.HwRevDetected,
		"fw_version_detected": req.FwVersionDetected,
		"fw_build_hash":       req.FwBuildHash,
	})
	return nil
}

func (s *lifecycleService) RecordAssembly(ctx context.Context, req RecordAssemblyRequest) error {
	unit, err := s.units.Get(ctx, req.SN)
	if err != nil {
		return err
	}
	if !domain.CanAdvance(unit.Status, domain.StatusAssembled) {
		return ErrStatusOrder
	}
	if err := s.units.SetStatus(ctx, req.SN, domain.StatusAssembled); err != nil {
		return err
	}
	s.journal(ctx, &req.SN, domain.EventAssemblyDone, req.StationID, req.OperatorID, map[string]any{
		"notes": req.Notes,
	})
	return nil
}

// RecordTestResult always appends the test run and its journal entry; the
// unit status moves to the tested sub-state only when that is still a
// forward move, and detected hardware/firmware fields refresh on PASS.
func (s *lifecycleService) RecordTestResult(ctx context.Context, req RecordTestResultRequest) error {
	if _, err := s.units.Get(ctx, req.SN); err != nil {
		return err
	}

	run := &domain.TestRun{
		SN:         req.SN,
		FixtureID:  req.FixtureID,
		Result:     req.Result,
		Metrics:    req.Metrics,
		FwReadback: req.FwReadback,
	}
	if err := s.testRuns.Insert(ctx, run); err != nil {
		return err
	}

	eventType := domain.EventTestFail
	target := domain.StatusTestFail
	if req.Result == domain.TestResultPass {
		eventType = domain.EventTestPass
		target = domain.StatusTestPass
	}

	station := req.StationID
	if station == nil {
		fixtureStation := "FIXTURE:" + req.FixtureID
		station = &fixtureStation
	}
	s.journal(ctx, &req.SN, eventType, station, "", map[string]any{
		"fixture_id":  req.FixtureID,
		"metrics":     req.Metrics,
		"fw_readback": req.FwReadback,
	})

	unit, err := s.units.Get(ctx, req.SN)
	if err != nil {
		return err
	}
	if !domain.CanAdvance(unit.Status, target) {
		return nil // history recorded, status stays where it is
	}
	if req.Result == domain.TestResultPass {
		return s.units.SetTestOutcome(ctx, req.SN, target, req.HwRevDetected, req.FwVersionDetected, req.FwBuildHash)
	}
	return s.units.SetStatus(ctx, req.SN, target)
}

func (s *lifecycleService) ScanKit(ctx context.Context, req ScanKitRequest) error {
	if _, err := s.units.Get(ctx, req.SN); err != nil {
		return err
	}
	s.journal(ctx, &req.SN, domain.EventPackKitScanned, req.StationID, req.OperatorID, map[string]any{
		"kit_id": req.KitID,
	})
	return nil
}

// FinalizePack runs the gate and journals the attempt whether it passes or
// not, so every attempt is auditable. The PACKED write happens only on a
// pass; a blocked gate returns ErrGateBlocked with the full blocker list.
func (s *lifecycleService) FinalizePack(ctx context.Context, req FinalizePackRequest) (*GateResult, error) {
	gate, err := s.gate.Evaluate(ctx, req.SN)
	if err != nil {
		return nil, err
	}

	s.journal(ctx, &req.SN, domain.EventPackFinalized, req.StationID, req.OperatorID, map[string]any{
		"allowed":  gate.Allowed,
		"blockers": gate.Blockers,
	})

	if !gate.Allowed {
		return gate, ErrGateBlocked
	}

	unit, err := s.units.Get(ctx, req.SN)
	if err != nil {
		return gate, err
	}
	if !domain.CanAdvance(unit.Status, domain.StatusPacked) {
		return gate, ErrStatusOrder
	}
	if err := s.units.SetStatus(ctx, req.SN, domain.StatusPacked); err != nil {
		return gate, err
	}
	s.logger.Info("unit packed", zap.String("sn", req.SN))
	return gate, nil
}

func (s *lifecycleService) MoveToStock(ctx context.Context, req MoveToStockRequest) error {
	unit, err := s.units.Get(ctx, req.SN)
	if err != nil {
		return err
	}
	if unit.Status != domain.StatusPacked {
		return ErrStatusOrder
	}

	refType := domain.RefTypeUnit
	operator := req.OperatorID
	movement := &domain.InventoryMovement{
		ItemID:       req.FinishedItemID,
		LocationID:   req.LocationID,
		MovementType: domain.MovementProduceFinished,
		Qty:          1,
		RefType:      &refType,
		RefID:        &req.SN,
		CreatedBy:    &operator,
	}
	if err := s.inventory.InsertMovement(ctx, movement); err != nil {
		return err
	}
	if err := s.units.SetStatus(ctx, req.SN, domain.StatusInStock); err != nil {
		return err
	}
	s.journal(ctx, &req.SN, domain.EventMoveToStock, req.StationID, req.OperatorID, map[string]any{
		"finished_item_id": req.FinishedItemID,
		"location_id":      req.LocationID,
	})
	return nil
}

func (s *lifecycleService) GetUnit(ctx context.Context, sn string) (*UnitDetails, error) {
	unit, err := s.units.Get(ctx, sn)
	if err != nil {
		return nil, err
	}
	lastTest, err := s.testRuns.LatestBySN(ctx, sn)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	gate, err := s.gate.Evaluate(ctx, sn)
	if err != nil {
		return nil, err
	}
	return &UnitDetails{Unit: unit, LastTest: lastTest, Gate: gate}, nil
}

// journal appends the single audit entry each operation owes. A failed
// append is logged, not propagated: the state write already happened and
// the action must not report failure after the fact.
func (s *lifecycleService) journal(ctx context.Context, sn *string, eventType string, stationID *string, operatorID string, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	var op *string
	if operatorID != "" {
		op = &operatorID
	}
	ev := &domain.UnitEvent{
		SN:         sn,
		EventType:  eventType,
		StationID:  stationID,
		OperatorID: op,
		Payload:    raw,
	}
	if err := s.events.Append(ctx, ev); err != nil {
		s.logger.Error("journal append failed",
			zap.String("event_type", eventType), zap.Stringp("sn", sn), zap.Error(err))
	}
}
