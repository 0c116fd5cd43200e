package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tidebrook/choretally/internal/auth"
	"github.com/tidebrook/choretally/internal/badge"
	"github.com/tidebrook/choretally/internal/model"
	"github.com/tidebrook/choretally/internal/points"
	"github.com/tidebrook/choretally/internal/push"
	"github.com/tidebrook/choretally/internal/store"
	ws "github.com/tidebrook/choretally/internal/websocket"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type PointsHandler struct {
	engine    *points.Engine
	evaluator *badge.Evaluator
	balances  *store.BalanceStore
	ledger    *store.LedgerStore
	hub       *ws.Hub
	pushSvc   *push.Service
	logger    *slog.Logger
}

func NewPointsHandler(engine *points.Engine, evaluator *badge.Evaluator, balances *store.BalanceStore, ledger *store.LedgerStore, hub *ws.Hub, pushSvc *push.Service, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{
		engine:    engine,
		evaluator: evaluator,
		balances:  balances,
		ledger:    ledger,
		hub:       hub,
		pushSvc:   pushSvc,
		logger:    logger,
	}
}

// GetBalance handles GET /api/points/balance. A user with no transactions
// gets a zero balance, not an error.
func (h *PointsHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	balance, err := h.balances.Get(userID, householdID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if balance == nil {
		balance = &model.PointBalance{UserID: userID, HouseholdID: householdID}
	}
	writeJSON(w, http.StatusOK, balance)
}

// GetHistory handles GET /api/points/history?filter=earned|spent&limit=&offset=
func (h *PointsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	filter := store.HistoryFilter(r.URL.Query().Get("filter"))
	switch filter {
	case store.FilterAll, store.FilterEarned, store.FilterSpent:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "filter must be earned or spent"})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		offset = n
	}

	txs, err := h.ledger.ListByUser(userID, householdID, filter, limit, offset)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if txs == nil {
		txs = []model.PointTransaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

type bonusRequest struct {
	UserID int64  `json:"user_id"`
	Points int    `json:"points"`
	Reason string `json:"reason,omitempty"`
}

// GrantBonus handles POST /api/points/bonus (admin only, enforced by the
// engine against the granter's role).
func (h *PointsHandler) GrantBonus(w http.ResponseWriter, r *http.Request) {
	granterID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	var req bonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	result, err := h.engine.AwardBonus(r.Context(), granterID, householdID, req.UserID, req.Points, req.Reason)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.Event{
		Type:        ws.EventBonusGranted,
		HouseholdID: householdID,
		UserID:      req.UserID,
		Points:      req.Points,
		Balance:     result.Balance.CurrentBalance,
	})
	h.pushSvc.NotifyUser(req.UserID, push.BonusPayload(req.Points, req.Reason))

	// A bonus can cross a total_points badge threshold.
	if unlocks, err := h.evaluator.Evaluate(r.Context(), req.UserID, householdID); err != nil {
		h.logger.Error("evaluate badges", "user_id", req.UserID, "error", err)
	} else {
		for _, u := range unlocks {
			h.hub.Broadcast(ws.Event{
				Type:        ws.EventBadgeEarned,
				HouseholdID: householdID,
				UserID:      req.UserID,
				Points:      u.Points,
				Extra:       map[string]any{"badge": u.Badge.Name},
			})
			h.pushSvc.NotifyUser(req.UserID, push.BadgePayload(u.Badge.Name, u.Points))
		}
	}

	writeJSON(w, http.StatusCreated, result)
}
