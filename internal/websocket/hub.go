package websocket

import (
	"encoding/json"
	"sync"
)

// Unit update events.
const (
	EventUnitsListed = "units_listed"
	EventUnitsSold   = "units_sold"
	EventUnitsBought = "units_bought"
)

// UnitUpdate is pushed to a user after a committed change to a grid they
// own or bought from.
type UnitUpdate struct {
	Event        string `json:"event"`
	GridID       string `json:"grid_id"`
	Units        int64  `json:"units"`
	UnitsForSell int64  `json:"units_for_sell"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

// Unregister reports whether client was registered, so callers that race
// on teardown only count it once.
func (h *Hub) Unregister(userID string, client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return false
	}
	if _, ok := h.clients[userID][client]; !ok {
		return false
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
	return true
}

// BroadcastUnits never blocks: a client with a full buffer misses the update.
func (h *Hub) BroadcastUnits(userID string, update UnitUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
