// Package push delivers web push notifications for point events: bonuses,
// badge unlocks, and redemption lifecycle changes.
package push

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/tidebrook/choretally/internal/model"
	"github.com/tidebrook/choretally/internal/store"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON sent to the push service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Service handles sending web push notifications.
type Service struct {
	publicKey  string
	privateKey string
	subs       *store.PushStore
	logger     *slog.Logger
}

// NewService creates a push service with VAPID keys. Empty keys disable
// sending; NotifyUser becomes a no-op.
func NewService(publicKey, privateKey string, subs *store.PushStore, logger *slog.Logger) *Service {
	return &Service{
		publicKey:  publicKey,
		privateKey: privateKey,
		subs:       subs,
		logger:     logger.With("component", "push"),
	}
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Enabled reports whether VAPID keys are configured.
func (s *Service) Enabled() bool {
	return s.publicKey != "" && s.privateKey != ""
}

// NotifyUser sends the payload to every subscription the user has
// registered. Expired endpoints are pruned; other per-endpoint failures are
// logged and skipped so one dead browser cannot block the rest.
func (s *Service) NotifyUser(userID int64, payload Payload) {
	if !s.Enabled() {
		return
	}

	subs, err := s.subs.ListByUser(userID)
	if err != nil {
		s.logger.Error("list subscriptions", "user_id", userID, "error", err)
		return
	}

	for _, sub := range subs {
		err := s.send(&sub, payload)
		if errors.Is(err, ErrExpired) {
			if err := s.subs.Delete(sub.ID); err != nil {
				s.logger.Warn("prune expired subscription", "id", sub.ID, "error", err)
			}
			continue
		}
		if err != nil {
			s.logger.Warn("send push", "user_id", userID, "error", err)
		}
	}
}

// BonusPayload describes an admin bonus grant.
func BonusPayload(points int, reason string) Payload {
	body := fmt.Sprintf("You received %d bonus points!", points)
	if reason != "" {
		body = fmt.Sprintf("You received %d bonus points: %s", points, reason)
	}
	return Payload{Title: "Bonus points", Body: body, Tag: model.NotifTypeBonusGranted}
}

// BadgePayload describes a badge unlock.
func BadgePayload(badgeName string, points int) Payload {
	body := fmt.Sprintf("You earned the %q badge!", badgeName)
	if points > 0 {
		body = fmt.Sprintf("You earned the %q badge (+%d points)!", badgeName, points)
	}
	return Payload{Title: "Badge earned", Body: body, Tag: model.NotifTypeBadgeEarned}
}

// RedemptionPayload describes a redemption event for household admins.
func RedemptionPayload(rewardTitle string, fulfilled bool) Payload {
	if fulfilled {
		return Payload{
			Title: "Reward fulfilled",
			Body:  fmt.Sprintf("Your redemption of %q was fulfilled.", rewardTitle),
			Tag:   model.NotifTypeRedemptionFulfilled,
		}
	}
	return Payload{
		Title: "Reward redeemed",
		Body:  fmt.Sprintf("A member redeemed %q.", rewardTitle),
		Tag:   model.NotifTypeRedemptionCreated,
	}
}

func (s *Service) send(sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      "mailto:noreply@choretally.app",
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.Bytes())

	return publicKey, privateKey, nil
}
