package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/roomies/internal/event"
)

// Message is the change notification written to subscribed clients.
type Message struct {
	Type        string         `json:"type"`
	HouseholdID int64          `json:"household_id"`
	Entity      string         `json:"entity"`
	Action      string         `json:"action"`
	ID          int64          `json:"id,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(householdID int64, entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:        fmt.Sprintf("%s_%s", entity, action),
		HouseholdID: householdID,
		Entity:      entity,
		Action:      action,
		ID:          id,
		Extra:       extra,
	}
}

// Hub tracks connected clients per household and fans messages out to the
// clients of the message's household only.
type Hub struct {
	mu         sync.RWMutex
	households map[int64]map[*Client]struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		households: make(map[int64]map[*Client]struct{}),
		logger:     logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.households[c.householdID]
	if !ok {
		set = make(map[*Client]struct{})
		h.households[c.householdID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a client and closes its send channel. Calling it twice
// is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.households[c.householdID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.households, c.householdID)
	}
}

// Broadcast queues msg for every client of msg.HouseholdID. Clients with a
// full buffer miss the message.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.households[msg.HouseholdID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping message for slow client", "household_id", msg.HouseholdID, "type", msg.Type)
		}
	}
}

// Publish implements event.Publisher. When a member leaves, their own
// connections to that household are closed after the notice is queued.
func (h *Hub) Publish(e event.Event) {
	h.Broadcast(NewMessage(e.HouseholdID, e.Entity, e.Action, e.ID, e.Extra))
	if e.Entity == "member" && e.Action == "left" {
		h.Disconnect(e.HouseholdID, e.ID)
	}
}

// Disconnect unregisters every client of personID subscribed to householdID.
// Their send channels close, which ends the connection once queued messages
// are written.
func (h *Hub) Disconnect(householdID, personID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.households[householdID]
	for c := range set {
		if c.personID != personID {
			continue
		}
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.households, householdID)
	}
}

// ClientCount returns the number of connected clients across households.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.households {
		n += len(set)
	}
	return n
}
