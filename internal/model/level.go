package model

import "time"

// Badge criteria type constants.
const (
	CriteriaChoresCompleted = "chores_completed"
	CriteriaStreakDays      = "streak_days"
	CriteriaTotalPoints     = "total_points"
	CriteriaSpecial         = "special"
)

// LevelDefinition maps a cumulative earned-point threshold to a level.
type LevelDefinition struct {
	Level          int    `json:"level"`
	Title          string `json:"title"`
	PointsRequired int    `json:"points_required"`
}

// BadgeDefinition is a static badge description. Criteria compare a user
// counter against Value; PointsReward is granted once, on unlock.
type BadgeDefinition struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	Category     string `json:"category"`
	CriteriaType string `json:"criteria_type"`
	Value        int    `json:"criteria_value"`
	PointsReward int    `json:"points_reward"`
}

// UserBadge records a badge unlock. At most one row per (user, badge).
type UserBadge struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	BadgeID  int64     `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
}
