package model

import "time"

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionFulfilled RedemptionStatus = "fulfilled"
)

// Redemption is a member's claim against the points ledger for a reward.
// PointsSpent snapshots the reward cost at redemption time; later price
// changes never alter it. Status moves pending -> fulfilled exactly once.
type Redemption struct {
	ID               int64            `json:"id"`
	RewardID         int64            `json:"reward_id"`
	UserID           int64            `json:"user_id"`
	HouseholdID      int64            `json:"household_id"`
	PointsSpent      int              `json:"points_spent"`
	Status           RedemptionStatus `json:"status"`
	FulfilledAt      *time.Time       `json:"fulfilled_at"`
	FulfilledBy      *int64           `json:"fulfilled_by"`
	FulfillmentNotes string           `json:"fulfillment_notes,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}
