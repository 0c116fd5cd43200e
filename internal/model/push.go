package model

import "time"

// Notification type constants
const (
	NotifTypeBonusGranted        = "bonus_granted"
	NotifTypeBadgeEarned         = "badge_earned"
	NotifTypeRedemptionCreated   = "redemption_created"
	NotifTypeRedemptionFulfilled = "redemption_fulfilled"
)

type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
