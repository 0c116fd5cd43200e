package handler

import (
	"log/slog"
	"net/http"

	"github.com/tidebrook/choretally/internal/auth"
	"github.com/tidebrook/choretally/internal/leaderboard"
	"github.com/tidebrook/choretally/internal/level"
	"github.com/tidebrook/choretally/internal/model"
	"github.com/tidebrook/choretally/internal/store"
)

type LeaderboardHandler struct {
	service  *leaderboard.Service
	balances *store.BalanceStore
	logger   *slog.Logger
}

func NewLeaderboardHandler(service *leaderboard.Service, balances *store.BalanceStore, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{service: service, balances: balances, logger: logger}
}

// GetLeaderboard handles GET /api/leaderboard?period=this_week|this_month|all_time
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	period, err := leaderboard.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	entries, err := h.service.GetLeaderboard(householdID, userID, period)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetStatistics handles GET /api/statistics
func (h *LeaderboardHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	stats, err := h.service.GetStatistics(userID, householdID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type levelResponse struct {
	Level    model.LevelDefinition  `json:"level"`
	Next     *model.LevelDefinition `json:"next_level,omitempty"`
	Progress int                    `json:"progress"`
	Points   int                    `json:"points"`
}

// GetLevel handles GET /api/levels/me. Levels derive from gross lifetime
// earnings, so the response is stable under undo.
func (h *LeaderboardHandler) GetLevel(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	balance, err := h.balances.Get(userID, householdID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	earned := 0
	if balance != nil {
		earned = balance.TotalEarned
	}

	current := level.FromPoints(earned)
	next := level.Next(current.Level)
	progress := 100
	if next != nil {
		progress = level.Progress(earned, current.PointsRequired, next.PointsRequired)
	}

	writeJSON(w, http.StatusOK, levelResponse{
		Level:    current,
		Next:     next,
		Progress: progress,
		Points:   earned,
	})
}
