package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tidebrook/choretally/internal/auth"
	"github.com/tidebrook/choretally/internal/badge"
	"github.com/tidebrook/choretally/internal/model"
	"github.com/tidebrook/choretally/internal/push"
	"github.com/tidebrook/choretally/internal/store"
	ws "github.com/tidebrook/choretally/internal/websocket"
)

type BadgeHandler struct {
	evaluator *badge.Evaluator
	badges    *store.BadgeStore
	hub       *ws.Hub
	pushSvc   *push.Service
	logger    *slog.Logger
}

func NewBadgeHandler(evaluator *badge.Evaluator, badges *store.BadgeStore, hub *ws.Hub, pushSvc *push.Service, logger *slog.Logger) *BadgeHandler {
	return &BadgeHandler{
		evaluator: evaluator,
		badges:    badges,
		hub:       hub,
		pushSvc:   pushSvc,
		logger:    logger,
	}
}

// List handles GET /api/badges: the full badge catalog.
func (h *BadgeHandler) List(w http.ResponseWriter, r *http.Request) {
	defs, err := h.badges.ListDefinitions()
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if defs == nil {
		defs = []model.BadgeDefinition{}
	}
	writeJSON(w, http.StatusOK, defs)
}

type earnedBadge struct {
	model.BadgeDefinition
	EarnedAt time.Time `json:"earned_at"`
}

// ListMine handles GET /api/badges/me: the catalog annotated with what the
// caller has earned.
func (h *BadgeHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	defs, err := h.badges.ListDefinitions()
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	held, err := h.badges.ListUserBadges(userID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	earned := make([]earnedBadge, 0, len(held))
	for _, def := range defs {
		if ub, ok := held[def.ID]; ok {
			earned = append(earned, earnedBadge{BadgeDefinition: def, EarnedAt: ub.EarnedAt})
		}
	}
	writeJSON(w, http.StatusOK, earned)
}

// Evaluate handles POST /api/badges/evaluate: an explicit re-check, safe to
// call any number of times.
func (h *BadgeHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	unlocks, err := h.evaluator.Evaluate(r.Context(), userID, householdID)
	if err != nil {
		respondError(w, h.logger, err)
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

	if unlocks == nil {
		unlocks = []badge.Unlock{}
	}
	writeJSON(w, http.StatusOK, unlocks)
}
