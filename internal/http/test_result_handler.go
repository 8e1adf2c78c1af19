package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/repository"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/service"

	"go.uber.org/zap"
)

// TestResultHandler 测试工位上报 Handler。调用方是治具（fixture），
// 使用共享密钥 X-Fixture-Token 认证，不走操作员会话。
type TestResultHandler struct {
	lifecycle service.LifecycleService
	auth      *Auth
	logger    *zap.Logger
}

func NewTestResultHandler(lifecycle service.LifecycleService, auth *Auth, logger *zap.Logger) *TestResultHandler {
	return &TestResultHandler{
		lifecycle: lifecycle,
		auth:      auth,
		logger:    logger,
	}
}

type testResultRequest struct {
	SN                string          `json:"sn"`
	FixtureID         string          `json:"fixture_id"`
	Result            string          `json:"result"` // PASS | FAIL
	Metrics           json.RawMessage `json:"metrics"`
	FwReadback        json.RawMessage `json:"fw_readback"`
	HwRevDetected     *string         `json:"hw_rev_detected"`
	FwVersionDetected *string         `json:"fw_version_detected"`
	FwBuildHash       *string         `json:"fw_build_hash"`
	StationID         *string         `json:"station_id"`
}

func (r *testResultRequest) validate() string {
	if r.SN == "" {
		return "sn required"
	}
	if r.FixtureID == "" {
		return "fixture_id required"
	}
	if r.Result != "PASS" && r.Result != "FAIL" {
		return "result must be PASS or FAIL"
	}
	return ""
}

// ServeHTTP 实现 http.Handler 接口
func (h *TestResultHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/mes/api/v1/test-results" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !h.auth.Fixture(w, r) {
		return
	}

	var req testResultRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	err := h.lifecycle.RecordTestResult(r.Context(), service.RecordTestResultRequest{
		SN:                req.SN,
		FixtureID:         req.FixtureID,
		Result:            req.Result,
		Metrics:           req.Metrics,
		FwReadback:        req.FwReadback,
		HwRevDetected:     req.HwRevDetected,
		FwVersionDetected: req.FwVersionDetected,
		FwBuildHash:       req.FwBuildHash,
		StationID:         req.StationID,
	})
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "not found")
		return
	}
	if err != nil {
		h.logger.Error("test-result failed", zap.Error(err), zap.String("sn", req.SN))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, Ok())
}
