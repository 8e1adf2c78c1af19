package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/repository"

	"go.uber.org/zap"
)

// Blocker codes, in the order the gate checks them. The gate never stops
// at the first violation (except a missing unit), so one evaluation always
// returns the complete remediation list.
const (
	BlockerUnitNotFound        = "UNIT_NOT_FOUND"
	BlockerUnitNotAssigned     = "UNIT_NOT_ASSIGNED"
	BlockerVariantNotFound     = "VARIANT_NOT_FOUND"
	BlockerNoTestRun           = "NO_TEST_RUN"
	BlockerTestNotPass         = "TEST_NOT_PASS"
	BlockerHwRevUnknown        = "HW_REV_UNKNOWN"
	BlockerHwRevNotAllowed     = "HW_REV_NOT_ALLOWED"
	BlockerFwVersionPolicyFail = "FW_VERSION_POLICY_FAIL"
	BlockerFwBuildHashMissing  = "FW_BUILD_HASH_MISSING"
	BlockerPackKitNotScanned   = "PACK_KIT_NOT_SCANNED"
	BlockerPackKitInvalid      = "PACK_KIT_INVALID"
	BlockerPackKitWrongVariant = "PACK_KIT_WRONG_VARIANT"
	BlockerDeviceLabelNotDone  = "DEVICE_LABEL_NOT_PRINTED"
)

// GateResult is the packaging-readiness decision for one unit.
type GateResult struct {
	Allowed  bool           `json:"allowed"`
	Blockers []string       `json:"blockers"`
	Expected map[string]any `json:"expected"`
}

// GateService decides whether a unit may be sealed for shipment. It only
// reads; an unmet precondition is a normal allowed=false result, never an
// error. Only infrastructural lookup failure returns an error.
type GateService interface {
	Evaluate(ctx context.Context, sn string) (*GateResult, error)
}

type gateService struct {
	units     repository.UnitsRepo
	reference repository.ReferenceRepo
	testRuns  repository.TestRunsRepo
	events    repository.EventsRepo
	printJobs repository.PrintJobsRepo
	logger    *zap.Logger
}

func NewGateService(
	units repository.UnitsRepo,
	reference repository.ReferenceRepo,
	testRuns repository.TestRunsRepo,
	events repository.EventsRepo,
	printJobs repository.PrintJobsRepo,
	logger *zap.Logger,
) GateService {
	return &gateService{
		units:     units,
		reference: reference,
		testRuns:  testRuns,
		events:    events,
		printJobs: printJobs,
		logger:    logger,
	}
}

// kitScanPayload is the payload shape of a PACK_KIT_SCANNED journal entry.
type kitScanPayload struct {
	KitID string `json:"kit_id"`
}

func (s *gateService) Evaluate(ctx context.Context, sn string) (*GateResult, error) {
	blockers := []string{}
	expected := map[string]any{}

	// 1. Unit. Without a unit no other check is meaningful.
	unit, err := s.units.Get(ctx, sn)
	if errors.Is(err, repository.ErrNotFound) {
		return &GateResult{Allowed: false, Blockers: []string{BlockerUnitNotFound}, Expected: expected}, nil
	}
	if err != nil {
		return nil, err
	}

	// 2. Variant assignment.
	var variant *domain.ProductVariant
	var rules *domain.VariantRules
	if unit.VariantID == nil {
		blockers = append(blockers, BlockerUnitNotAssigned)
	} else {
		variant, err = s.reference.GetVariant(ctx, *unit.VariantID)
		if errors.Is(err, repository.ErrNotFound) {
			blockers = append(blockers, BlockerVariantNotFound)
			variant = nil
		} else if err != nil {
			return nil, err
		}

		rules, err = s.reference.GetVariantRules(ctx, *unit.VariantID)
		if errors.Is(err, repository.ErrNotFound) {
			rules = nil // no rules configured: unrestricted
		} else if err != nil {
			return nil, err
		}
	}

	// 3. Latest test run.
	lastTest, err := s.testRuns.LatestBySN(ctx, sn)
	if errors.Is(err, repository.ErrNotFound) {
		blockers = append(blockers, BlockerNoTestRun)
	} else if err != nil {
		return nil, err
	} else if !strings.EqualFold(lastTest.Result, domain.TestResultPass) {
		blockers = append(blockers, BlockerTestNotPass)
	}

	// 4. Hardware revision against the allowed set (empty = unrestricted).
	if rules != nil && len(rules.AllowedHwRevs) > 0 {
		switch {
		case unit.HwRevDetected == nil || *unit.HwRevDetected == "":
			blockers = append(blockers, BlockerHwRevUnknown)
		case !contains(rules.AllowedHwRevs, *unit.HwRevDetected):
			blockers = append(blockers, BlockerHwRevNotAllowed)
		}
	}

	// 5. Firmware policy.
	var fwPolicy domain.FirmwarePolicy
	if rules != nil {
		fwPolicy = rules.Firmware
	}
	expected["firmware_policy"] = fwPolicy
	if fwPolicy.RequiredPrefix != "" {
		if unit.FwVersionDetected == nil || !strings.HasPrefix(*unit.FwVersionDetected, fwPolicy.RequiredPrefix) {
			blockers = append(blockers, BlockerFwVersionPolicyFail)
		}
	}
	if fwPolicy.RequireBuildHash && (unit.FwBuildHash == nil || *unit.FwBuildHash == "") {
		blockers = append(blockers, BlockerFwBuildHashMissing)
	}

	// 6. Packaging kit: most recent PACK_KIT_SCANNED journal entry.
	kitID := ""
	scan, err := s.events.LatestBySNAndType(ctx, sn, domain.EventPackKitScanned)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if scan != nil {
		var payload kitScanPayload
		if err := json.Unmarshal(scan.Payload, &payload); err != nil {
			s.logger.Warn("malformed PACK_KIT_SCANNED payload", zap.String("sn", sn), zap.Error(err))
		}
		kitID = payload.KitID
	}
	if kitID == "" {
		blockers = append(blockers, BlockerPackKitNotScanned)
	} else {
		kit, err := s.reference.GetPackagingKit(ctx, kitID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		switch {
		case kit == nil || !kit.Active:
			blockers = append(blockers, BlockerPackKitInvalid)
		case variant != nil && !contains(kit.CompatibleVariantCodes, variant.VariantCode):
			blockers = append(blockers, BlockerPackKitWrongVariant)
		default:
			expected["packaging_kit"] = kit
		}
	}

	// 7. Device label policy: at least one DONE device_label job for this sn.
	if rules != nil && rules.Packaging.RequireDeviceLabel {
		jobs, err := s.printJobs.ListBySN(ctx, sn)
		if err != nil {
			return nil, err
		}
		printed := false
		for _, j := range jobs {
			if j.JobType == domain.JobTypeDeviceLabel && j.Status == domain.PrintJobDone {
				printed = true
				break
			}
		}
		if !printed {
			blockers = append(blockers, BlockerDeviceLabelNotDone)
		}
	}

	if variant != nil {
		expected["variant"] = variant
	}

	return &GateResult{Allowed: len(blockers) == 0, Blockers: blockers, Expected: expected}, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
