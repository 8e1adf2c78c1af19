package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/repository"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/service"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testVariantID = "11111111-1111-1111-1111-111111111111"
	testKitID     = "KIT-EU-STD"
	fixtureToken  = "fixture-secret"
	agentToken    = "agent-secret"
)

// apiFixture wires the whole HTTP surface on memory repos, the way main
// does in dev mode.
type apiFixture struct {
	router    *Router
	units     *repository.MemoryUnitsRepo
	reference *repository.MemoryReferenceRepo
	events    *repository.MemoryEventsRepo
	printJobs *repository.MemoryPrintJobsRepo
	inventory *repository.MemoryInventoryRepo
	token     string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log := zap.NewNop()

	f := &apiFixture{
		units:     repository.NewMemoryUnitsRepo(),
		reference: repository.NewMemoryReferenceRepo(),
		events:    repository.NewMemoryEventsRepo(),
		printJobs: repository.NewMemoryPrintJobsRepo(),
		inventory: repository.NewMemoryInventoryRepo(),
	}
	testRuns := repository.NewMemoryTestRunsRepo()
	orders := repository.NewMemoryProductionOrdersRepo()

	sessions := store.NewSessionStore(store.NewMemoryKV(), 0)
	operators := NewOperatorStore()
	operators.Upsert("operator@flexavolt.local", "ChangeMe123!")

	gate := service.NewGateService(f.units, f.reference, testRuns, f.events, f.printJobs, log)
	lifecycle := service.NewLifecycleService(f.units, f.reference, testRuns, f.events, f.inventory, gate, log)
	queue := service.NewPrintQueueService(f.printJobs, f.events, nil, 0, log)

	auth := NewAuth(operators, sessions, fixtureToken, agentToken, log)

	f.router = NewRouter(log)
	f.router.RegisterAuthRoutes(NewAuthHandler(operators, sessions, log))
	f.router.RegisterUnitRoutes(NewUnitHandler(lifecycle, f.units, auth, log))
	f.router.RegisterTestResultRoutes(NewTestResultHandler(lifecycle, auth, log))
	f.router.RegisterPrintJobRoutes(NewPrintJobHandler(queue, auth, log))
	f.router.RegisterProductionOrderRoutes(NewProductionOrderHandler(orders, f.reference, auth, log))
	f.router.RegisterInventoryRoutes(NewInventoryHandler(f.inventory, f.events, auth, log))
	f.router.RegisterHealthRoutes()

	// Login once; most requests reuse the session.
	rec := f.do(t, http.MethodPost, "/mes/api/v1/auth/login", map[string]any{
		"email":    "operator@flexavolt.local",
		"password": "ChangeMe123!",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	f.token = login.Token

	f.reference.PutVariant(domain.ProductVariant{
		VariantID:          testVariantID,
		VariantCode:        "FV-BS-EU",
		DefaultLanguageSet: "EU",
		FinishedItemID:     "FG-FV-BS-EU",
	})
	f.reference.PutVariantRules(domain.VariantRules{
		VariantID:     testVariantID,
		AllowedHwRevs: []string{"B", "C"},
		Firmware:      domain.FirmwarePolicy{RequiredPrefix: "1.2."},
	})
	f.reference.PutPackagingKit(domain.PackagingKit{
		KitID:                  testKitID,
		CompatibleVariantCodes: []string{"FV-BS-EU"},
		LanguageSet:            "EU",
		Active:                 true,
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) asOperator(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return f.do(t, method, path, body, map[string]string{"Authorization": "Bearer " + f.token})
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/mes/api/v1/auth/login", map[string]any{
		"email":    "operator@flexavolt.local",
		"password": "wrong",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnitRoutes_RequireSession(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/mes/api/v1/units/create-generic", map[string]any{}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

// Walks one unit from creation to finished stock through the public API.
func TestUnitLifecycle_EndToEnd(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.asOperator(t, http.MethodPost, "/mes/api/v1/units/create-generic", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		SN string `json:"sn"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SN)
	sn := created.SN
	base := "/mes/api/v1/units/" + sn

	rec = f.asOperator(t, http.MethodPost, base+"/assign-variant", map[string]any{
		"variant_id":            testVariantID,
		"assigned_product_code": "BS",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.asOperator(t, http.MethodPost, base+"/flash", map[string]any{
		"hw_rev_detected":     "B",
		"fw_version_detected": "1.2.0",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.asOperator(t, http.MethodPost, base+"/assemble", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/mes/api/v1/test-results", map[string]any{
		"sn":         sn,
		"fixture_id": "FX-01",
		"result":     "PASS",
	}, map[string]string{"X-Fixture-Token": fixtureToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.asOperator(t, http.MethodPost, base+"/pack/scan-kit", map[string]any{
		"kit_id": testKitID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.asOperator(t, http.MethodPost, base+"/pack/finalize", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.asOperator(t, http.MethodPost, base+"/move-to-stock", map[string]any{
		"finished_item_id": "FG-FV-BS-EU",
		"location_id":      "33333333-3333-3333-3333-333333333333",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.asOperator(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var details struct {
		Unit struct {
			Status string `json:"status"`
		} `json:"unit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	require.Equal(t, domain.StatusInStock, details.Unit.Status)

	require.Len(t, f.inventory.Movements(), 1)
}

func TestFinalizePack_Returns409WithBlockers(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.asOperator(t, http.MethodPost, "/mes/api/v1/units/create-generic", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		SN string `json:"sn"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.asOperator(t, http.MethodPost, "/mes/api/v1/units/"+created.SN+"/pack/finalize", map[string]any{})
	require.Equal(t, http.StatusConflict, rec.Code)

	var gate struct {
		Allowed  bool     `json:"allowed"`
		Blockers []string `json:"blockers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gate))
	require.False(t, gate.Allowed)
	require.Contains(t, gate.Blockers, "UNIT_NOT_ASSIGNED")
	require.Contains(t, gate.Blockers, "NO_TEST_RUN")
}

func TestAssignVariant_Validation(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.asOperator(t, http.MethodPost, "/mes/api/v1/units/2401-GN-00001/assign-variant", map[string]any{
		"variant_id":            "not-a-uuid",
		"assigned_product_code": "BS",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown unit folds into a 400.
	rec = f.asOperator(t, http.MethodPost, "/mes/api/v1/units/2401-GN-99999/assign-variant", map[string]any{
		"variant_id":            testVariantID,
		"assigned_product_code": "BS",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTestResults_RejectsBadFixtureToken(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/mes/api/v1/test-results", map[string]any{
		"sn":         "2401-GN-00001",
		"fixture_id": "FX-01",
		"result":     "PASS",
	}, map[string]string{"X-Fixture-Token": "bogus"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPrintJobs_EnqueueClaimReport(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.asOperator(t, http.MethodPost, "/mes/api/v1/print-jobs", map[string]any{
		"job_type": "device_label",
		"payload":  map[string]any{"zpl": "^XA...^XZ"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var enq struct {
		PrintJobID string `json:"print_job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enq))
	require.NotEmpty(t, enq.PrintJobID)

	agentHeaders := map[string]string{"X-Agent-Token": agentToken}

	rec = f.do(t, http.MethodGet, "/mes/api/v1/print-jobs/next?agent_id=agent-1", nil, agentHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	var claim struct {
		Job *domain.PrintJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claim))
	require.NotNil(t, claim.Job)
	require.Equal(t, enq.PrintJobID, claim.Job.PrintJobID)

	rec = f.do(t, http.MethodPost, "/mes/api/v1/print-jobs/"+enq.PrintJobID+"/done", map[string]any{}, agentHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	// Empty queue comes back as ok with a null job, not an error.
	rec = f.do(t, http.MethodGet, "/mes/api/v1/print-jobs/next?agent_id=agent-1", nil, agentHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	claim.Job = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claim))
	require.Nil(t, claim.Job)
}

func TestPrintJobs_AgentTokenRequired(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/mes/api/v1/print-jobs/next?agent_id=agent-1", nil,
		map[string]string{"X-Agent-Token": "bogus"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductionOrders(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.asOperator(t, http.MethodPost, "/mes/api/v1/production-orders", map[string]any{
		"variant_id":  testVariantID,
		"qty_planned": 100,
		"due_date":    "2026-09-30",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		ProdOrderID string `json:"prod_order_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ProdOrderID)

	rec = f.asOperator(t, http.MethodGet, "/mes/api/v1/production-orders/"+created.ProdOrderID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched domain.ProductionOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	require.Equal(t, domain.ProdOrderPlanned, fetched.Status)
	require.Equal(t, 100, fetched.QtyPlanned)

	rec = f.asOperator(t, http.MethodPost, "/mes/api/v1/production-orders", map[string]any{
		"variant_id":  "22222222-2222-2222-2222-222222222222",
		"qty_planned": 10,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInventoryMove_JournalsUnitRef(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.asOperator(t, http.MethodPost, "/mes/api/v1/inventory/move", map[string]any{
		"item_id":       "FG-FV-BS-EU",
		"location_id":   "33333333-3333-3333-3333-333333333333",
		"movement_type": "TRANSFER",
		"qty":           1,
		"ref_type":      "UNIT",
		"ref_id":        "2401-GN-00001",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.inventory.Movements(), 1)

	events := f.events.All()
	require.Len(t, events, 1)
	require.Equal(t, domain.EventInventoryMove, events[0].EventType)
	require.Equal(t, "2401-GN-00001", *events[0].SN)
}

func TestUnitsExport(t *testing.T) {
	f := newAPIFixture(t)
	f.units.Put(domain.SerializedUnit{SN: "2401-GN-00001", Status: domain.StatusGeneric})

	rec := f.asOperator(t, http.MethodGet, "/mes/api/v1/units/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Body.Bytes())
}
