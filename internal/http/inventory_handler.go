package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InventoryHandler 库存流水 Handler
type InventoryHandler struct {
	inventory repository.InventoryRepo
	events    repository.EventsRepo
	auth      *Auth
	logger    *zap.Logger
}

func NewInventoryHandler(inventory repository.InventoryRepo, events repository.EventsRepo, auth *Auth, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventory: inventory,
		events:    events,
		auth:      auth,
		logger:    logger,
	}
}

type inventoryMoveRequest struct {
	ItemID       string   `json:"item_id"`
	LocationID   string   `json:"location_id"`
	MovementType string   `json:"movement_type"`
	Qty          int      `json:"qty"`
	RefType      *string  `json:"ref_type"`
	RefID        *string  `json:"ref_id"`
	UnitCost     *float64 `json:"unit_cost"`
}

func (r *inventoryMoveRequest) validate() string {
	if n := len(r.ItemID); n < 3 || n > 80 {
		return "item_id must be 3-80 characters"
	}
	if _, err := uuid.Parse(r.LocationID); err != nil {
		return "location_id must be a UUID"
	}
	if r.MovementType == "" {
		return "movement_type required"
	}
	if r.Qty == 0 {
		return "qty must be non-zero"
	}
	if (r.RefType == nil) != (r.RefID == nil) {
		return "ref_type and ref_id must be set together"
	}
	return ""
}

type inventoryMoveResponse struct {
	Result
	MovementID string `json:"movement_id"`
}

// ServeHTTP 实现 http.Handler 接口
func (h *InventoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/mes/api/v1/inventory/move" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	op := h.auth.Operator(w, r)
	if op == nil {
		return
	}

	var req inventoryMoveRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	move := &domain.InventoryMovement{
		MovementID:   uuid.NewString(),
		ItemID:       req.ItemID,
		LocationID:   req.LocationID,
		MovementType: req.MovementType,
		Qty:          req.Qty,
		RefType:      req.RefType,
		RefID:        req.RefID,
		UnitCost:     req.UnitCost,
		CreatedBy:    &op.OperatorID,
	}
	if err := h.inventory.InsertMovement(r.Context(), move); err != nil {
		h.logger.Error("inventory move failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Movements that reference a serialized unit also land in its journal.
	if req.RefType != nil && *req.RefType == domain.RefTypeUnit && req.RefID != nil {
		payload, _ := json.Marshal(map[string]any{
			"movement_id":   move.MovementID,
			"item_id":       move.ItemID,
			"location_id":   move.LocationID,
			"movement_type": move.MovementType,
			"qty":           move.Qty,
		})
		ev := &domain.UnitEvent{
			EventID:    uuid.NewString(),
			SN:         req.RefID,
			EventType:  domain.EventInventoryMove,
			OperatorID: &op.OperatorID,
			Payload:    payload,
		}
		if err := h.events.Append(r.Context(), ev); err != nil {
			h.logger.Warn("journal append failed", zap.Error(err), zap.String("sn", *req.RefID))
		}
	}

	writeJSON(w, http.StatusOK, inventoryMoveResponse{Result: Ok(), MovementID: move.MovementID})
}
