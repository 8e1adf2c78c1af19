package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const productionOrdersPrefix = "/mes/api/v1/production-orders/"

// ProductionOrderHandler 生产工单 Handler
type ProductionOrderHandler struct {
	orders    repository.ProductionOrdersRepo
	reference repository.ReferenceRepo
	auth      *Auth
	logger    *zap.Logger
}

func NewProductionOrderHandler(orders repository.ProductionOrdersRepo, reference repository.ReferenceRepo, auth *Auth, logger *zap.Logger) *ProductionOrderHandler {
	return &ProductionOrderHandler{
		orders:    orders,
		reference: reference,
		auth:      auth,
		logger:    logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *ProductionOrderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	op := h.auth.Operator(w, r)
	if op == nil {
		return
	}

	path := r.URL.Path
	switch {
	case path == "/mes/api/v1/production-orders" && r.Method == http.MethodPost:
		h.Create(w, r)
	case r.Method == http.MethodGet:
		h.Get(w, r, pathTail(path, productionOrdersPrefix))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type createOrderRequest struct {
	VariantID  string  `json:"variant_id"`
	QtyPlanned int     `json:"qty_planned"`
	DueDate    *string `json:"due_date"` // RFC 3339 date, optional
}

type createOrderResponse struct {
	Result
	ProdOrderID string `json:"prod_order_id"`
}

func (h *ProductionOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := uuid.Parse(req.VariantID); err != nil {
		writeError(w, http.StatusBadRequest, "variant_id must be a UUID")
		return
	}
	if req.QtyPlanned < 1 {
		writeError(w, http.StatusBadRequest, "qty_planned must be positive")
		return
	}
	var due *time.Time
	if req.DueDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
			return
		}
		due = &parsed
	}

	// Reject orders for variants that don't exist.
	if _, err := h.reference.GetVariant(r.Context(), req.VariantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "variant not found")
			return
		}
		h.logger.Error("variant lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	order, err := h.orders.Insert(r.Context(), &domain.ProductionOrder{
		ProdOrderID: uuid.NewString(),
		VariantID:   req.VariantID,
		QtyPlanned:  req.QtyPlanned,
		Status:      domain.ProdOrderPlanned,
		DueDate:     due,
	})
	if err != nil {
		h.logger.Error("create production order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, createOrderResponse{Result: Ok(), ProdOrderID: order.ProdOrderID})
}

func (h *ProductionOrderHandler) Get(w http.ResponseWriter, r *http.Request, prodOrderID string) {
	if prodOrderID == "" {
		writeError(w, http.StatusBadRequest, "prod_order_id required")
		return
	}
	order, err := h.orders.Get(r.Context(), prodOrderID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "not found")
		return
	}
	if err != nil {
		h.logger.Error("get production order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, order)
}
