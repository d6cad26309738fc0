/*
Package chat contains the Broadcast Service, the single place where inbound chat operations
are validated, rate limited, applied to the registries and turned into outbound events.

This file defines the transient message and event types and the Publisher the service hands
events to. Delivery is the publisher's job; the service never waits on it.
*/
package chat

// MessageType identifies the kind of a chat message.
type MessageType string

const (
	// TypeChat is a message written by a user.
	TypeChat MessageType = "CHAT"

	// TypeJoin announces that a user joined the room.
	TypeJoin MessageType = "JOIN"

	// TypeLeave announces that a user left the room.
	TypeLeave MessageType = "LEAVE"

	// TypeSystem is a server notice addressed to the room or to one session.
	TypeSystem MessageType = "SYSTEM"
)

// SystemSender is the sender name used for SYSTEM messages.
const SystemSender = "system"

// Message is one chat message as delivered to clients. It is never stored.
type Message struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"roomId"`
	Sender    string      `json:"sender"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
}

// PresenceStatus is the status carried by a presence event.
type PresenceStatus string

const (
	StatusJoined PresenceStatus = "joined"
	StatusLeft   PresenceStatus = "left"
)

// Presence tells room members that a user joined or left.
type Presence struct {
	Username  string         `json:"username"`
	Status    PresenceStatus `json:"status"`
	Timestamp int64          `json:"timestamp"`
}

// ErrorPayload is delivered only to the session whose operation failed.
type ErrorPayload struct {
	Message   string `json:"message"`
	Code      int    `json:"code"`
	Timestamp int64  `json:"timestamp"`

	// RetryAfterMs is set on rate-limit rejections.
	RetryAfterMs int64 `json:"retryAfterMs,omitempty"`
}

// EventKind names an outbound event on the wire.
type EventKind string

const (
	EventMessage  EventKind = "message"
	EventPresence EventKind = "presence"
	EventError    EventKind = "error"
)

// Event is the outbound envelope: {"event": kind, "data": payload}.
type Event struct {
	Kind EventKind `json:"event"`
	Data any       `json:"data"`
}

// MessageEvent wraps m in an Event.
func MessageEvent(m Message) Event {
	return Event{Kind: EventMessage, Data: m}
}

// PresenceEvent wraps p in an Event.
func PresenceEvent(p Presence) Event {
	return Event{Kind: EventPresence, Data: p}
}

// ErrorEvent wraps p in an Event.
func ErrorEvent(p ErrorPayload) Event {
	return Event{Kind: EventError, Data: p}
}

// Publisher delivers events produced by the Service.
//
// BroadcastToRoom delivers to every session that is a member of roomID at delivery time.
// SendToSession delivers to one session. Both are best effort and must not block.
type Publisher interface {
	BroadcastToRoom(roomID string, ev Event)
	SendToSession(sessionID string, ev Event)
}
