package service

import (
	"context"
	"testing"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testVariantID = "11111111-1111-1111-1111-111111111111"
	testSN        = "2401-GN-00001"
	testKitID     = "KIT-EU-STD"
)

type gateFixture struct {
	units     *repository.MemoryUnitsRepo
	reference *repository.MemoryReferenceRepo
	testRuns  *repository.MemoryTestRunsRepo
	events    *repository.MemoryEventsRepo
	printJobs *repository.MemoryPrintJobsRepo
	gate      GateService
}

func newGateFixture() *gateFixture {
	f := &gateFixture{
		units:     repository.NewMemoryUnitsRepo(),
		reference: repository.NewMemoryReferenceRepo(),
		testRuns:  repository.NewMemoryTestRunsRepo(),
		events:    repository.NewMemoryEventsRepo(),
		printJobs: repository.NewMemoryPrintJobsRepo(),
	}
	f.gate = NewGateService(f.units, f.reference, f.testRuns, f.events, f.printJobs, zap.NewNop())
	return f
}

func (f *gateFixture) seedVariant(t *testing.T, requireDeviceLabel bool) {
	t.Helper()
	f.reference.PutVariant(domain.ProductVariant{
		VariantID:          testVariantID,
		VariantCode:        "FV-BS-EU",
		DefaultLanguageSet: "EU",
		FinishedItemID:     "FG-FV-BS-EU",
	})
	f.reference.PutVariantRules(domain.VariantRules{
		VariantID:     testVariantID,
		AllowedHwRevs: []string{"B", "C"},
		Firmware: domain.FirmwarePolicy{
			RequiredPrefix:   "1.2.",
			RequireBuildHash: true,
		},
		Packaging: domain.PackagingPolicy{RequireDeviceLabel: requireDeviceLabel},
	})
	f.reference.PutPackagingKit(domain.PackagingKit{
		KitID:                  testKitID,
		CompatibleVariantCodes: []string{"FV-BS-EU", "FV-PT-EU"},
		LanguageSet:            "EU",
		Active:                 true,
	})
}

// seedReadyUnit puts a unit that satisfies every gate check.
func (f *gateFixture) seedReadyUnit(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	variantID := testVariantID
	code := "BS"
	hwRev := "B"
	fwVersion := "1.2.0"
	buildHash := "a1b2c3d4"
	f.units.Put(domain.SerializedUnit{
		SN:                testSN,
		Status:            domain.StatusTestPass,
		VariantID:         &variantID,
		AssignedCode:      &code,
		HwRevDetected:     &hwRev,
		FwVersionDetected: &fwVersion,
		FwBuildHash:       &buildHash,
		CreatedAt:         time.Now().UTC(),
	})
	require.NoError(t, f.testRuns.Insert(ctx, &domain.TestRun{
		SN:        testSN,
		FixtureID: "FX-01",
		Result:    domain.TestResultPass,
	}))
	sn := testSN
	require.NoError(t, f.events.Append(ctx, &domain.UnitEvent{
		SN:        &sn,
		EventType: domain.EventPackKitScanned,
		Payload:   []byte(`{"kit_id":"` + testKitID + `"}`),
	}))
}

func TestGateEvaluate_UnitNotFound(t *testing.T) {
	f := newGateFixture()

	res, err := f.gate.Evaluate(context.Background(), "2401-GN-99999")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, []string{BlockerUnitNotFound}, res.Blockers)
}

func TestGateEvaluate_AllChecksPass(t *testing.T) {
	f := newGateFixture()
	f.seedVariant(t, false)
	f.seedReadyUnit(t)

	res, err := f.gate.Evaluate(context.Background(), testSN)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Empty(t, res.Blockers)

	// expected carries the firmware policy, matched kit and variant.
	require.Contains(t, res.Expected, "firmware_policy")
	require.Contains(t, res.Expected, "packaging_kit")
	require.Contains(t, res.Expected, "variant")
}

// A fresh unassigned unit must report the complete remediation list, not
// stop at the first violation.
func TestGateEvaluate_CollectsAllBlockers(t *testing.T) {
	f := newGateFixture()
	f.units.Put(domain.SerializedUnit{
		SN:     testSN,
		Status: domain.StatusGeneric,
	})

	res, err := f.gate.Evaluate(context.Background(), testSN)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, []string{
		BlockerUnitNotAssigned,
		BlockerNoTestRun,
		BlockerPackKitNotScanned,
	}, res.Blockers)
	// firmware_policy is present even with no rules configured.
	require.Contains(t, res.Expected, "firmware_policy")
}

func TestGateEvaluate_Deterministic(t *testing.T) {
	f := newGateFixture()
	f.seedVariant(t, false)
	f.units.Put(domain.SerializedUnit{
		SN:     testSN,
		Status: domain.StatusGeneric,
	})

	first, err := f.gate.Evaluate(context.Background(), testSN)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := f.gate.Evaluate(context.Background(), testSN)
		require.NoError(t, err)
		require.Equal(t, first.Blockers, again.Blockers)
	}
}

func TestGateEvaluate_TestNotPass(t *testing.T) {
	f := newGateFixture()
	f.seedVariant(t, false)
	f.seedReadyUnit(t)
	// A newer FAIL run supersedes the earlier PASS.
	require.NoError(t, f.testRuns.Insert(context.Background(), &domain.TestRun{
		SN:        testSN,
		FixtureID: "FX-01",
		Result:    domain.TestResultFail,
	}))

	res, err := f.gate.Evaluate(context.Background(), testSN)
	require.NoError(t, err)
	require.Equal(t, []string{BlockerTestNotPass}, res.Blockers)
}

func TestGateEvaluate_HwRevChecks(t *testing.T) {
	f := newGateFixture()
	f.seedVariant(t, false)
	f.seedReadyUnit(t)

	ctx := context.Background()
	badRev := "D"
	require.NoError(t, f.units.SetTestOutcome(ctx, testSN, domain.StatusTestPass, &badRev, nil, nil))
	res, err := f.gate.Evaluate(ctx, testSN)
	require.NoError(t, err)
	require.Equal(t, []string{BlockerHwRevNotAllowed}, res.Blockers)

	empty := ""
	require.NoError(t, f.units.SetFlashResult(ctx, testSN, &empty, strPtr("1.2.0"), strPtr("a1b2c3d4"), domain.StatusTestPass))
	res, err = f.gate.Evaluate(ctx, testSN)
	require.NoError(t, err)
	require.Equal(t, []string{BlockerHwRevUnknown}, res.Blockers)
}

func TestGateEvaluate_FirmwarePolicy(t *testing.T) {
	f := newGateFixture()
	f.seedVariant(t, false)
	f.seedReadyUnit(t)

	ctx := context.Background()
	require.NoError(t, f.units.SetFlashResult(ctx, testSN, strPtr("B"), strPtr("1.3.0"), nil, domain.StatusTestPass))

	res, err := f.gate.Evaluate(ctx, testSN)
	require.NoError(t, err)
	require.Equal(t, []string{BlockerFwVersionPolicyFail, BlockerFwBuildHashMissing}, res.Blockers)
}

func TestGateEvaluate_InactiveKit(t *testing.T) {
	f := newGateFixture()
	f.seedVariant(t, false)
	f.seedReadyUnit(t)
	f.reference.PutPackagingKit(domain.PackagingKit{
		KitID:                  testKitID,
		CompatibleVariantCodes: []string{"FV-BS-EU"},
		LanguageSet:            "EU",
		Active:                 false,
	})

	res, err := f.gate.Evaluate(context.Background(), testSN)
	require.NoError(t, err)
	require.Equal(t, []string{BlockerPackKitInvalid}, res.Blockers)
}

func TestGateEvaluate_KitWrongVariant(t *testing.T) {
	f := newGateFixture()
	f.seedVariant(t, false)
	f.seedReadyUnit(t)
	f.reference.PutPackagingKit(domain.PackagingKit{
		KitID:                  testKitID,
		CompatibleVariantCodes: []string{"FV-BT-US"},
		LanguageSet:            "US",
		Active:                 true,
	})

	res, err := f.gate.Evaluate(context.Background(), testSN)
	require.NoError(t, err)
	require.Equal(t, []string{BlockerPackKitWrongVariant}, res.Blockers)
}

// The most recent kit scan wins; an older scan of a good kit does not
// rescue a later scan of a bad one.
func TestGateEvaluate_LatestKitScanWins(t *testing.T) {
	f := newGateFixture()
	f.seedVariant(t, false)
	f.seedReadyUnit(t)

	sn := testSN
	require.NoError(t, f.events.Append(context.Background(), &domain.UnitEvent{
		SN:        &sn,
		EventType: domain.EventPackKitScanned,
		Payload:   []byte(`{"kit_id":"KIT-UNKNOWN"}`),
	}))

	res, err := f.gate.Evaluate(context.Background(), testSN)
	require.NoError(t, err)
	require.Equal(t, []string{BlockerPackKitInvalid}, res.Blockers)
}

func TestGateEvaluate_DeviceLabelPolicy(t *testing.T) {
	f := newGateFixture()
	f.seedVariant(t, true)
	f.seedReadyUnit(t)

	ctx := context.Background()
	res, err := f.gate.Evaluate(ctx, testSN)
	require.NoError(t, err)
	require.Equal(t, []string{BlockerDeviceLabelNotDone}, res.Blockers)

	// A queued job is not enough; the label must actually have printed.
	sn := testSN
	job, err := f.printJobs.Insert(ctx, &domain.PrintJob{JobType: domain.JobTypeDeviceLabel, SN: &sn})
	require.NoError(t, err)
	res, err = f.gate.Evaluate(ctx, testSN)
	require.NoError(t, err)
	require.Equal(t, []string{BlockerDeviceLabelNotDone}, res.Blockers)

	require.NoError(t, f.printJobs.MarkDone(ctx, job.PrintJobID))
	res, err = f.gate.Evaluate(ctx, testSN)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func strPtr(s string) *string { return &s }
