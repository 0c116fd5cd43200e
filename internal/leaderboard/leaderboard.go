// Package leaderboard is the read side of the ledger: household rankings over
// a time window and per-user comparison statistics. Nothing here mutates
// state, and a ranking computed mid-write may trail the ledger by one
// transaction, which is acceptable.
package leaderboard

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/tidebrook/choretally/internal/model"
	"github.com/tidebrook/choretally/internal/points"
	"github.com/tidebrook/choretally/internal/store"
)

// Period selects the ranking window.
type Period string

const (
	PeriodAllTime   Period = "all_time"
	PeriodThisWeek  Period = "this_week"
	PeriodThisMonth Period = "this_month"
)

// ParsePeriod validates a query-string period value. Empty means all-time.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodAllTime:
		return PeriodAllTime, nil
	case PeriodThisWeek:
		return PeriodThisWeek, nil
	case PeriodThisMonth:
		return PeriodThisMonth, nil
	default:
		return "", fmt.Errorf("unknown period %q: %w", s, points.ErrValidation)
	}
}

type Service struct {
	ledger     *store.LedgerStore
	balances   *store.BalanceStore
	streaks    *store.StreakStore
	households *store.HouseholdStore
	logger     *slog.Logger

	now func() time.Time
}

func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{
		ledger:     store.NewLedgerStore(db),
		balances:   store.NewBalanceStore(db),
		streaks:    store.NewStreakStore(db),
		households: store.NewHouseholdStore(db),
		logger:     logger.With("component", "leaderboard"),
		now:        time.Now,
	}
}

// GetLeaderboard ranks household members by points in the window: gross
// lifetime earnings for all-time, positive ledger entries within the period
// otherwise. Ranks are sequential, ties broken by display name; members with
// zero points are dropped unless the entry is the requester's own.
func (s *Service) GetLeaderboard(householdID, requestingUserID int64, period Period) ([]model.LeaderboardEntry, error) {
	members, err := s.households.ListMemberProfiles(householdID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("household %d has no members: %w", householdID, points.ErrNotFound)
	}

	totals, balances, err := s.windowTotals(householdID, period)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, 0, len(members))
	for _, m := range members {
		entries = append(entries, model.LeaderboardEntry{
			UserID:         m.UserID,
			DisplayName:    m.DisplayName,
			AvatarURL:      m.AvatarURL,
			TotalPoints:    totals[m.UserID],
			CurrentBalance: balances[m.UserID],
			IsCurrentUser:  m.UserID == requestingUserID,
		})
	}

	// Members arrive in display-name order, so a stable sort on points
	// leaves ties alphabetical.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalPoints > entries[j].TotalPoints
	})

	ranked := entries[:0]
	for i := range entries {
		entries[i].Rank = i + 1
		if entries[i].TotalPoints > 0 || entries[i].IsCurrentUser {
			ranked = append(ranked, entries[i])
		}
	}
	return ranked, nil
}

func (s *Service) windowTotals(householdID int64, period Period) (totals, balances map[int64]int, err error) {
	rows, err := s.balances.ListByHousehold(householdID)
	if err != nil {
		return nil, nil, err
	}
	balances = make(map[int64]int, len(rows))
	for _, b := range rows {
		balances[b.UserID] = b.CurrentBalance
	}

	if period == PeriodAllTime {
		totals = make(map[int64]int, len(rows))
		for _, b := range rows {
			totals[b.UserID] = b.TotalEarned
		}
		return totals, balances, nil
	}

	start := s.periodStart(period)
	totals, err = s.ledger.EarnedByMemberBetween(householdID, start, s.now())
	if err != nil {
		return nil, nil, err
	}
	return totals, balances, nil
}

// periodStart computes the window's opening instant. Weeks start Monday
// 00:00 UTC; months start on the 1st, 00:00 UTC.
func (s *Service) periodStart(period Period) time.Time {
	now := s.now().UTC()
	switch period {
	case PeriodThisWeek:
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return day.AddDate(0, 0, -daysSinceMonday)
	case PeriodThisMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

// GetStatistics builds the dashboard comparison view: current week and month
// against the immediately preceding ones, plus streaks and lifetime totals.
func (s *Service) GetStatistics(userID, householdID int64) (*model.UserStatistics, error) {
	now := s.now()
	weekStart := s.periodStart(PeriodThisWeek)
	monthStart := s.periodStart(PeriodThisMonth)
	prevWeekStart := weekStart.AddDate(0, 0, -7)
	prevMonthStart := monthStart.AddDate(0, -1, 0)

	week, err := s.periodStats(userID, householdID, weekStart, now)
	if err != nil {
		return nil, err
	}
	prevWeek, err := s.periodStats(userID, householdID, prevWeekStart, weekStart)
	if err != nil {
		return nil, err
	}
	month, err := s.periodStats(userID, householdID, monthStart, now)
	if err != nil {
		return nil, err
	}
	prevMonth, err := s.periodStats(userID, householdID, prevMonthStart, monthStart)
	if err != nil {
		return nil, err
	}

	stats := &model.UserStatistics{
		Week:              week,
		PreviousWeek:      prevWeek,
		Month:             month,
		PreviousMonth:     prevMonth,
		WeekPointsChange:  percentChange(week.Points, prevWeek.Points),
		MonthPointsChange: percentChange(month.Points, prevMonth.Points),
	}

	st, err := s.streaks.Get(userID)
	if err != nil {
		return nil, err
	}
	if st != nil {
		stats.CurrentStreak = st.CurrentStreak
		stats.LongestStreak = st.LongestStreak
	}

	balance, err := s.balances.Get(userID, householdID)
	if err != nil {
		return nil, err
	}
	if balance != nil {
		stats.CurrentBalance = balance.CurrentBalance
		stats.TotalEarned = balance.TotalEarned
		stats.TotalSpent = balance.TotalSpent
	}
	return stats, nil
}

func (s *Service) periodStats(userID, householdID int64, start, end time.Time) (model.PeriodStats, error) {
	pts, err := s.ledger.EarnedBetween(userID, householdID, start, end)
	if err != nil {
		return model.PeriodStats{}, err
	}
	chores, err := s.ledger.CountByTypeBetween(userID, householdID, model.TxChoreCompletion, start, end)
	if err != nil {
		return model.PeriodStats{}, err
	}
	return model.PeriodStats{Points: pts, Chores: chores}, nil
}

// percentChange never divides by zero: no history and no activity is 0%, new
// activity against an empty previous period reads as 100%.
func percentChange(current, previous int) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}
