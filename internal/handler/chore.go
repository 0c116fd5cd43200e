package handler

import (
	"log/slog"
	"net/http"

	"github.com/tidebrook/choretally/internal/auth"
	"github.com/tidebrook/choretally/internal/badge"
	"github.com/tidebrook/choretally/internal/points"
	"github.com/tidebrook/choretally/internal/push"
	ws "github.com/tidebrook/choretally/internal/websocket"
)

// ChoreHandler owns the completion and undo endpoints, the two highest
// traffic writes in the system.
type ChoreHandler struct {
	engine    *points.Engine
	evaluator *badge.Evaluator
	hub       *ws.Hub
	pushSvc   *push.Service
	logger    *slog.Logger
}

func NewChoreHandler(engine *points.Engine, evaluator *badge.Evaluator, hub *ws.Hub, pushSvc *push.Service, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{
		engine:    engine,
		evaluator: evaluator,
		hub:       hub,
		pushSvc:   pushSvc,
		logger:    logger,
	}
}

// Complete handles POST /api/chores/{id}/complete
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	choreID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	result, err := h.engine.AwardChoreCompletion(r.Context(), userID, householdID, choreID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.Event{
		Type:        ws.EventPointsAwarded,
		HouseholdID: householdID,
		UserID:      userID,
		Points:      result.Transaction.Points,
		Balance:     result.Balance.CurrentBalance,
		Extra:       map[string]any{"chore_id": choreID, "streak": result.Streak.CurrentStreak},
	})

	h.evaluateBadges(r, userID, householdID)

	writeJSON(w, http.StatusCreated, result)
}

// Undo handles POST /api/chores/{id}/undo
func (h *ChoreHandler) Undo(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	choreID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	result, err := h.engine.UndoCompletion(r.Context(), userID, householdID, choreID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.Event{
		Type:        ws.EventCompletionUndone,
		HouseholdID: householdID,
		UserID:      userID,
		Points:      result.Transaction.Points,
		Balance:     result.Balance.CurrentBalance,
		Extra:       map[string]any{"chore_id": choreID},
	})

	writeJSON(w, http.StatusOK, result)
}

// evaluateBadges runs after a successful award. Unlock failures are logged,
// never surfaced: the completion already committed.
func (h *ChoreHandler) evaluateBadges(r *http.Request, userID, householdID int64) {
	unlocks, err := h.evaluator.Evaluate(r.Context(), userID, householdID)
	if err != nil {
		h.logger.Error("evaluate badges", "user_id", userID, "error", err)
		return
	}

	for _, u := range unlocks {
		h.hub.Broadcast(ws.Event{
			Type:        ws.EventBadgeEarned,
			HouseholdID: householdID,
			UserID:      userID,
			Points:      u.Points,
			Extra:       map[string]any{"badge": u.Badge.Name},
		})
		h.pushSvc.NotifyUser(userID, push.BadgePayload(u.Badge.Name, u.Points))
	}
}
