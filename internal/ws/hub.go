// Package ws carries the two external channels the engine consumes: a
// change-notification feed telling clients to refetch a changed room, and
// the presence channel whose join/leave/sync events drive the presence
// monitor.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"syncboard/internal/logger"
	"syncboard/internal/presence"
)

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client

	monitor *presence.Monitor
}

func NewHub(monitor *presence.Monitor) *Hub {
	return &Hub{
		rooms:   make(map[string]map[string]*Client),
		monitor: monitor,
	}
}

type outbound struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Marker string `json:"marker,omitempty"`
}

// Register adds the client to its room and announces liveness.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	clients, ok := h.rooms[c.RoomID]
	if !ok {
		clients = make(map[string]*Client)
		h.rooms[c.RoomID] = clients
	}
	if old, ok := clients[c.ParticipantID]; ok && old != c {
		close(old.Send)
	}
	clients[c.ParticipantID] = c
	h.mu.Unlock()

	h.monitor.HandleJoin(c.RoomID, c.ParticipantID)
	logger.Debug("ws register", "room_id", c.RoomID, "participant_id", c.ParticipantID)
}

// Unregister drops the client and signals a liveness leave, starting the
// grace window if the participant is seated.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := false
	if clients, ok := h.rooms[c.RoomID]; ok && clients[c.ParticipantID] == c {
		delete(clients, c.ParticipantID)
		close(c.Send)
		removed = true
		if len(clients) == 0 {
			delete(h.rooms, c.RoomID)
		}
	}
	h.mu.Unlock()
	if !removed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.monitor.HandleLeave(ctx, c.RoomID, c.ParticipantID)
}

// HandleSync reconciles presence against the authoritative set of connected
// participants. The client-supplied roster is merged with what the hub
// itself can see.
func (h *Hub) HandleSync(c *Client, present []string) {
	set := make(map[string]bool, len(present))
	for _, id := range present {
		set[id] = true
	}
	h.mu.RLock()
	for id := range h.rooms[c.RoomID] {
		set[id] = true
	}
	h.mu.RUnlock()

	merged := make([]string, 0, len(set))
	for id := range set {
		merged = append(merged, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.monitor.HandleSync(ctx, c.RoomID, merged)
}

// RoomChanged pushes a refetch hint to every client in the room. Wired as
// the sink of the change-notification channel.
func (h *Hub) RoomChanged(roomID, marker string) {
	payload, _ := json.Marshal(outbound{Type: "room_changed", RoomID: roomID, Marker: marker})

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[roomID] {
		select {
		case c.Send <- payload:
		default:
			// slow consumer; it will refetch on the next change
		}
	}
}

// CloseRoom tears down every connection in a room and clears its presence
// timers. Called on room deletion.
func (h *Hub) CloseRoom(roomID string) {
	h.mu.Lock()
	for _, c := range h.rooms[roomID] {
		close(c.Send)
	}
	delete(h.rooms, roomID)
	h.mu.Unlock()

	h.monitor.CloseRoom(roomID)
}

// Connected lists the participants the hub currently holds sockets for.
func (h *Hub) Connected(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms[roomID]))
	for id := range h.rooms[roomID] {
		ids = append(ids, id)
	}
	return ids
}
