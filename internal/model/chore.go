package model

import "time"

// Chore is owned by the chore collaborator; the ledger core reads its
// household scope, point value, and difficulty.
type Chore struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	Difficulty  string    `json:"difficulty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChoreCompletion is the reference row a chore_completion ledger entry points
// at. Undone completions are flagged, never deleted, so the undo audit trail
// stays intact.
type ChoreCompletion struct {
	ID           int64     `json:"id"`
	ChoreID      int64     `json:"chore_id"`
	HouseholdID  int64     `json:"household_id"`
	CompletedBy  int64     `json:"completed_by"`
	PointsEarned int       `json:"points_earned"`
	Undone       bool      `json:"undone"`
	CompletedAt  time.Time `json:"completed_at"`
}
