package model

import "time"

// Transaction type constants. Every row in the ledger carries exactly one.
const (
	TxChoreCompletion  = "chore_completion"
	TxBonus            = "bonus"
	TxUndo             = "undo"
	TxRewardRedemption = "reward_redemption"
	TxStreakBonus      = "streak_bonus"
)

// PointTransaction is an immutable ledger entry. Rows are never updated or
// deleted; corrections are made by inserting a compensating entry.
type PointTransaction struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	HouseholdID     int64     `json:"household_id"`
	Points          int       `json:"points"` // positive = earn, negative = spend
	TransactionType string    `json:"transaction_type"`
	ReferenceID     *int64    `json:"reference_id"`
	Description     *string   `json:"description"`
	BalanceAfter    int       `json:"balance_after"`
	CreatedBy       *int64    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// PointBalance is the mutable projection of the ledger, one row per user per
// household. CurrentBalance always equals the sum of ledger points for the
// pair. TotalEarned and TotalSpent are gross historical figures and never
// decrease: an undo or refund adjusts CurrentBalance only.
type PointBalance struct {
	UserID         int64     `json:"user_id"`
	HouseholdID    int64     `json:"household_id"`
	CurrentBalance int       `json:"current_balance"`
	TotalEarned    int       `json:"total_earned"`
	TotalSpent     int       `json:"total_spent"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserStreak tracks consecutive UTC calendar days with at least one chore
// completion. LongestStreak >= CurrentStreak always.
type UserStreak struct {
	UserID             int64     `json:"user_id"`
	CurrentStreak      int       `json:"current_streak"`
	LongestStreak      int       `json:"longest_streak"`
	LastCompletionDate string    `json:"last_completion_date"` // YYYY-MM-DD, UTC
	UpdatedAt          time.Time `json:"updated_at"`
}

// LeaderboardEntry is computed per request, never persisted.
type LeaderboardEntry struct {
	UserID         int64  `json:"user_id"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	TotalPoints    int    `json:"total_points"`
	CurrentBalance int    `json:"current_balance"`
	Rank           int    `json:"rank"`
	IsCurrentUser  bool   `json:"is_current_user"`
}

// PeriodStats holds points and chore counts for one time window.
type PeriodStats struct {
	Points int `json:"points"`
	Chores int `json:"chores"`
}

// UserStatistics is the dashboard comparison view: current week/month against
// the immediately preceding week/month, plus streaks and lifetime totals.
type UserStatistics struct {
	Week              PeriodStats `json:"week"`
	PreviousWeek      PeriodStats `json:"previous_week"`
	Month             PeriodStats `json:"month"`
	PreviousMonth     PeriodStats `json:"previous_month"`
	WeekPointsChange  float64     `json:"week_points_change_pct"`
	MonthPointsChange float64     `json:"month_points_change_pct"`
	CurrentStreak     int         `json:"current_streak"`
	LongestStreak     int         `json:"longest_streak"`
	CurrentBalance    int         `json:"current_balance"`
	TotalEarned       int         `json:"total_earned"`
	TotalSpent        int         `json:"total_spent"`
}
