package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tidebrook/choretally/internal/auth"
	"github.com/tidebrook/choretally/internal/model"
	"github.com/tidebrook/choretally/internal/points"
	"github.com/tidebrook/choretally/internal/push"
	"github.com/tidebrook/choretally/internal/redemption"
	"github.com/tidebrook/choretally/internal/store"
	ws "github.com/tidebrook/choretally/internal/websocket"
)

type RedemptionHandler struct {
	engine   *points.Engine
	workflow *redemption.Workflow
	rewards  *store.RewardStore
	hub      *ws.Hub
	pushSvc  *push.Service
	logger   *slog.Logger
}

func NewRedemptionHandler(engine *points.Engine, workflow *redemption.Workflow, rewards *store.RewardStore, hub *ws.Hub, pushSvc *push.Service, logger *slog.Logger) *RedemptionHandler {
	return &RedemptionHandler{
		engine:   engine,
		workflow: workflow,
		rewards:  rewards,
		hub:      hub,
		pushSvc:  pushSvc,
		logger:   logger,
	}
}

// Redeem handles POST /api/rewards/{id}/redeem
func (h *RedemptionHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	rewardID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	result, err := h.engine.ChargeRedemption(r.Context(), userID, householdID, rewardID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.Event{
		Type:        ws.EventRedemptionCreated,
		HouseholdID: householdID,
		UserID:      userID,
		Points:      result.Transaction.Points,
		Balance:     result.Balance.CurrentBalance,
		Extra:       map[string]any{"redemption_id": result.Redemption.ID},
	})

	writeJSON(w, http.StatusCreated, result)
}

// Refund handles POST /api/redemptions/{id}/refund
func (h *RedemptionHandler) Refund(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	redemptionID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	result, err := h.engine.RefundRedemption(r.Context(), userID, householdID, redemptionID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.Event{
		Type:        ws.EventRedemptionRefunded,
		HouseholdID: householdID,
		UserID:      result.Transaction.UserID,
		Points:      result.Transaction.Points,
		Balance:     result.Balance.CurrentBalance,
	})

	writeJSON(w, http.StatusOK, result)
}

type fulfillRequest struct {
	Notes string `json:"notes,omitempty"`
}

// Fulfill handles POST /api/redemptions/{id}/fulfill (admin only).
func (h *RedemptionHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	adminID := auth.UserID(r.Context())

	redemptionID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req fulfillRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}

	fulfilled, err := h.workflow.Fulfill(redemptionID, adminID, req.Notes)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.Event{
		Type:        ws.EventRedemptionFulfilled,
		HouseholdID: fulfilled.HouseholdID,
		UserID:      fulfilled.UserID,
		Extra:       map[string]any{"redemption_id": fulfilled.ID},
	})

	if reward, err := h.rewards.GetByID(fulfilled.RewardID); err == nil && reward != nil {
		h.pushSvc.NotifyUser(fulfilled.UserID, push.RedemptionPayload(reward.Title, true))
	}

	writeJSON(w, http.StatusOK, fulfilled)
}

// List handles GET /api/redemptions. Regular members see their own history;
// admins may pass all=true (and optionally status=) for the household view.
func (h *RedemptionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	var redemptions []model.Redemption
	var err error
	if r.URL.Query().Get("all") == "true" {
		status := model.RedemptionStatus(r.URL.Query().Get("status"))
		redemptions, err = h.workflow.ListForHousehold(householdID, userID, status)
	} else {
		redemptions, err = h.workflow.ListForUser(userID, householdID)
	}
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if redemptions == nil {
		redemptions = []model.Redemption{}
	}
	writeJSON(w, http.StatusOK, redemptions)
}
