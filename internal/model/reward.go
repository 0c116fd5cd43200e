package model

import "time"

// Reward is owned by the reward-catalog collaborator; the ledger core reads
// its cost, quantity, and active flag when charging a redemption.
type Reward struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PointCost   int       `json:"point_cost"`
	Quantity    *int      `json:"quantity"` // nil = unlimited
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}
