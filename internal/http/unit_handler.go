package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/repository"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/service"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const unitsPrefix = "/mes/api/v1/units/"

// UnitHandler 序列化单元生命周期 Handler
type UnitHandler struct {
	lifecycle service.LifecycleService
	units     repository.UnitsRepo
	auth      *Auth
	logger    *zap.Logger
}

func NewUnitHandler(lifecycle service.LifecycleService, units repository.UnitsRepo, auth *Auth, logger *zap.Logger) *UnitHandler {
	return &UnitHandler{
		lifecycle: lifecycle,
		units:     units,
		auth:      auth,
		logger:    logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *UnitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	op := h.auth.Operator(w, r)
	if op == nil {
		return
	}

	path := r.URL.Path
	switch {
	case path == "/mes/api/v1/units/create-generic" && r.Method == http.MethodPost:
		h.CreateGeneric(w, r, op)
	case path == "/mes/api/v1/units/export" && r.Method == http.MethodGet:
		h.Export(w, r)
	case strings.HasSuffix(path, "/assign-variant") && r.Method == http.MethodPost:
		h.AssignVariant(w, r, op, pathSegment(path, unitsPrefix, "/assign-variant"))
	case strings.HasSuffix(path, "/flash") && r.Method == http.MethodPost:
		h.Flash(w, r, op, pathSegment(path, unitsPrefix, "/flash"))
	case strings.HasSuffix(path, "/assemble") && r.Method == http.MethodPost:
		h.Assemble(w, r, op, pathSegment(path, unitsPrefix, "/assemble"))
	case strings.HasSuffix(path, "/pack/scan-kit") && r.Method == http.MethodPost:
		h.ScanKit(w, r, op, pathSegment(path, unitsPrefix, "/pack/scan-kit"))
	case strings.HasSuffix(path, "/pack/finalize") && r.Method == http.MethodPost:
		h.FinalizePack(w, r, op, pathSegment(path, unitsPrefix, "/pack/finalize"))
	case strings.HasSuffix(path, "/move-to-stock") && r.Method == http.MethodPost:
		h.MoveToStock(w, r, op, pathSegment(path, unitsPrefix, "/move-to-stock"))
	case r.Method == http.MethodGet:
		h.GetUnit(w, r, pathTail(path, unitsPrefix))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// writeActionError maps service/repository failures to the wire. Missing
// records fold into 400 with an error body; unexpected store failures are
// a generic 500.
func (h *UnitHandler) writeActionError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusBadRequest, "not found")
	case errors.Is(err, service.ErrStatusOrder):
		writeError(w, http.StatusBadRequest, "unit status does not allow this action")
	default:
		h.logger.Error(action+" failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type createGenericRequest struct {
	ProdOrderID *string `json:"prod_order_id"`
	StationID   *string `json:"station_id"`
}

type createGenericResponse struct {
	Result
	SN string `json:"sn"`
}

func (h *UnitHandler) CreateGeneric(w http.ResponseWriter, r *http.Request, op *store.Operator) {
	var req createGenericRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	unit, err := h.lifecycle.CreateGenericUnit(r.Context(), service.CreateGenericUnitRequest{
		ProdOrderID: req.ProdOrderID,
		StationID:   req.StationID,
		OperatorID:  op.OperatorID,
	})
	if err != nil {
		h.writeActionError(w, "create-generic", err)
		return
	}
	writeJSON(w, http.StatusOK, createGenericResponse{Result: Ok(), SN: unit.SN})
}

type assignVariantRequest struct {
	VariantID           string  `json:"variant_id"`
	AssignedProductCode string  `json:"assigned_product_code"` // e.g. BS/PT/BT
	StationID           *string `json:"station_id"`
}

func (r *assignVariantRequest) validate() string {
	if _, err := uuid.Parse(r.VariantID); err != nil {
		return "variant_id must be a UUID"
	}
	if n := len(r.AssignedProductCode); n < 2 || n > 8 {
		return "assigned_product_code must be 2-8 characters"
	}
	return ""
}

func (h *UnitHandler) AssignVariant(w http.ResponseWriter, r *http.Request, op *store.Operator, sn string) {
	if sn == "" {
		writeError(w, http.StatusBadRequest, "sn required")
		return
	}
	var req assignVariantRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	err := h.lifecycle.AssignVariant(r.Context(), service.AssignVariantRequest{
		SN:           sn,
		VariantID:    req.VariantID,
		AssignedCode: req.AssignedProductCode,
		StationID:    req.StationID,
		OperatorID:   op.OperatorID,
	})
	if err != nil {
		h.writeActionError(w, "assign-variant", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok())
}

type flashRequest struct {
	StationID         *string `json:"station_id"`
	HwRevDetected     *string `json:"hw_rev_detected"`
	FwVersionDetected *string `json:"fw_version_detected"`
	FwBuildHash       *string `json:"fw_build_hash"`
}

func (h *UnitHandler) Flash(w http.ResponseWriter, r *http.Request, op *store.Operator, sn string) {
	if sn == "" {
		writeError(w, http.StatusBadRequest, "sn required")
		return
	}
	var req flashRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.lifecycle.RecordFlash(r.Context(), service.RecordFlashRequest{
		SN:                sn,
		HwRevDetected:     req.HwRevDetected,
		FwVersionDetected: req.FwVersionDetected,
		FwBuildHash:       req.FwBuildHash,
		StationID:         req.StationID,
		OperatorID:        op.OperatorID,
	})
	if err != nil {
		h.writeActionError(w, "flash", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok())
}

type assembleRequest struct {
	StationID *string `json:"station_id"`
	Notes     *string `json:"notes"`
}

func (h *UnitHandler) Assemble(w http.ResponseWriter, r *http.Request, op *store.Operator, sn string) {
	if sn == "" {
		writeError(w, http.StatusBadRequest, "sn required")
		return
	}
	var req assembleRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.lifecycle.RecordAssembly(r.Context(), service.RecordAssemblyRequest{
		SN:         sn,
		Notes:      req.Notes,
		StationID:  req.StationID,
		OperatorID: op.OperatorID,
	})
	if err != nil {
		h.writeActionError(w, "assemble", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok())
}

type scanKitRequest struct {
	StationID *string `json:"station_id"`
	KitID     string  `json:"kit_id"`
}

func (h *UnitHandler) ScanKit(w http.ResponseWriter, r *http.Request, op *store.Operator, sn string) {
	if sn == "" {
		writeError(w, http.StatusBadRequest, "sn required")
		return
	}
	var req scanKitRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if n := len(req.KitID); n < 3 || n > 80 {
		writeError(w, http.StatusBadRequest, "kit_id must be 3-80 characters")
		return
	}

	err := h.lifecycle.ScanKit(r.Context(), service.ScanKitRequest{
		SN:         sn,
		KitID:      req.KitID,
		StationID:  req.StationID,
		OperatorID: op.OperatorID,
	})
	if err != nil {
		h.writeActionError(w, "scan-kit", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok())
}

type finalizeRequest struct {
	StationID *string `json:"station_id"`
}

type finalizeResponse struct {
	Result
	Gate *service.GateResult `json:"gate"`
}

func (h *UnitHandler) FinalizePack(w http.ResponseWriter, r *http.Request, op *store.Operator, sn string) {
	if sn == "" {
		writeError(w, http.StatusBadRequest, "sn required")
		return
	}
	var req finalizeRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	gate, err := h.lifecycle.FinalizePack(r.Context(), service.FinalizePackRequest{
		SN:         sn,
		StationID:  req.StationID,
		OperatorID: op.OperatorID,
	})
	if errors.Is(err, service.ErrGateBlocked) {
		// The full blocker list is the point of the 409 body.
		writeJSON(w, http.StatusConflict, gate)
		return
	}
	if err != nil {
		h.writeActionError(w, "finalize-pack", err)
		return
	}
	writeJSON(w, http.StatusOK, finalizeResponse{Result: Ok(), Gate: gate})
}

type moveToStockRequest struct {
	StationID      *string `json:"station_id"`
	FinishedItemID string  `json:"finished_item_id"`
	LocationID     string  `json:"location_id"`
}

func (r *moveToStockRequest) validate() string {
	if n := len(r.FinishedItemID); n < 3 || n > 80 {
		return "finished_item_id must be 3-80 characters"
	}
	if _, err := uuid.Parse(r.LocationID); err != nil {
		return "location_id must be a UUID"
	}
	return ""
}

func (h *UnitHandler) MoveToStock(w http.ResponseWriter, r *http.Request, op *store.Operator, sn string) {
	if sn == "" {
		writeError(w, http.StatusBadRequest, "sn required")
		return
	}
	var req moveToStockRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	err := h.lifecycle.MoveToStock(r.Context(), service.MoveToStockRequest{
		SN:             sn,
		FinishedItemID: req.FinishedItemID,
		LocationID:     req.LocationID,
		StationID:      req.StationID,
		OperatorID:     op.OperatorID,
	})
	if err != nil {
		h.writeActionError(w, "move-to-stock", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok())
}

func (h *UnitHandler) GetUnit(w http.ResponseWriter, r *http.Request, sn string) {
	if sn == "" {
		writeError(w, http.StatusBadRequest, "sn required")
		return
	}
	details, err := h.lifecycle.GetUnit(r.Context(), sn)
	if err != nil {
		h.writeActionError(w, "get-unit", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
