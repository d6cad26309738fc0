/*
Package gateway binds the chat service to WebSocket connections.

This file defines the Hub, which tracks every live connection by session id and implements
chat.Publisher. Room fan-out asks the room registry who is a member at delivery time and
queues the encoded event on each member's connection; a full queue drops the event for that
connection only.
*/
package gateway

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
)

// MemberLister resolves the sessions currently in a room.
type MemberLister interface {
	ListUsers(roomID string) []user.Session
}

// Hub is the registry of live connections.
type Hub struct {
	// clients maps a session id to its connection.
	clients map[string]*Client

	// mu protects clients.
	mu sync.RWMutex

	members MemberLister

	logger zerolog.Logger
}

// NewHub creates a Hub that resolves room members through members.
func NewHub(members MemberLister) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		members: members,
		logger:  logx.Component("Hub"),
	}
}

// Serve runs a new session on an upgraded connection and returns when the connection ends.
// The session id is assigned here.
func (h *Hub) Serve(conn *websocket.Conn, ops Operations) {
	c := NewClient(randx.SessionID(), conn, h, ops)
	h.Register(c)

	go c.WritePump()

	c.ReadPump()
}

// Register adds the client. A previous connection with the same session id is closed.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old, replaced := h.clients[c.id]
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	if replaced && old != c {
		h.logger.Warn().Str("session_id", c.id).Msg("Session id already connected. Closing old connection.")
		old.Close()
	}

	h.logger.Info().Str("session_id", c.id).Int("total_clients", total).Msg("Client registered.")
}

// Unregister removes the client if it is still the registered connection for its session
// and reports whether it was.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	cur, ok := h.clients[c.id]
	current := ok && cur == c
	if current {
		delete(h.clients, c.id)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if current {
		h.logger.Info().Str("session_id", c.id).Int("total_clients", total).Msg("Client unregistered.")
	}
	return current
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// BroadcastToRoom queues ev on every connection whose session is in roomID.
func (h *Hub) BroadcastToRoom(roomID string, ev chat.Event) {
	data, ok := h.encode(ev)
	if !ok {
		return
	}

	members := h.members.ListUsers(roomID)

	h.mu.RLock()
	targets := make([]*Client, 0, len(members))
	for _, m := range members {
		if c, ok := h.clients[m.SessionID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

// SendToSession queues ev on the session's connection, if it has one.
func (h *Hub) SendToSession(sessionID string, ev chat.Event) {
	h.mu.RLock()
	c, ok := h.clients[sessionID]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug().Str("session_id", sessionID).Str("event", string(ev.Kind)).Msg("No connection for session; event dropped.")
		return
	}

	if data, ok := h.encode(ev); ok {
		c.enqueue(data)
	}
}

func (h *Hub) encode(ev chat.Event) ([]byte, bool) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("event", string(ev.Kind)).Msg("Error marshaling event.")
		return nil, false
	}
	return data, true
}

// Shutdown closes every connection. Each read pump then runs its normal disconnect path.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down hub...")

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}

	h.logger.Info().Int("closed", len(clients)).Msg("Hub shutdown complete.")
}
