package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event names pushed to connected clients after a ledger mutation commits.
const (
	EventPointsAwarded       = "points_awarded"
	EventCompletionUndone    = "completion_undone"
	EventBonusGranted        = "bonus_granted"
	EventBadgeEarned         = "badge_earned"
	EventRedemptionCreated   = "redemption_created"
	EventRedemptionRefunded  = "redemption_refunded"
	EventRedemptionFulfilled = "redemption_fulfilled"
)

// Event is a real-time notification broadcast to a household's clients.
// Balance carries the user's post-mutation balance so dashboards can update
// without a refetch.
type Event struct {
	Type        string         `json:"type"`
	HouseholdID int64          `json:"household_id"`
	UserID      int64          `json:"user_id"`
	Points      int            `json:"points,omitempty"`
	Balance     int            `json:"balance,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Hub maintains the set of active WebSocket clients and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every client in the event's household.
func (h *Hub) Broadcast(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.householdID != evt.HouseholdID {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop the event rather than block
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
