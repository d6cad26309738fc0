/*
Package user contains the data structures describing a connected chat participant.

A Session is one client connection's identity and activity state. It is independent of which
room the client currently occupies; RoomID only records that association.
*/
package user

import "time"

// Session represents one connected client.
// Registries hand out copies of Session values, never pointers into their own state.
type Session struct {
	// SessionID is the opaque identifier assigned by the transport at connection time.
	SessionID string `json:"sessionId"`

	// Username is the display name. It is not globally unique.
	Username string `json:"username"`

	// RoomID is the room currently occupied, or "" when the session is in no room.
	RoomID string `json:"roomId,omitempty"`

	// JoinedAt is when the session was first registered.
	JoinedAt time.Time `json:"joinedAt"`

	// LastActivity is refreshed by every send, join and leave. Never earlier than JoinedAt.
	LastActivity time.Time `json:"lastActivity"`

	// IsActive distinguishes a soft-offline session from a removed one.
	IsActive bool `json:"isActive"`
}

// New returns an active session whose JoinedAt and LastActivity are both now.
func New(sessionID, username string, now time.Time) Session {
	return Session{
		SessionID:    sessionID,
		Username:     username,
		JoinedAt:     now,
		LastActivity: now,
		IsActive:     true,
	}
}

// Touch moves LastActivity to now, keeping it monotonic.
func (s *Session) Touch(now time.Time) {
	if now.After(s.LastActivity) {
		s.LastActivity = now
	}
}

// IsStale reports whether the session has been idle for longer than threshold at now.
func (s Session) IsStale(now time.Time, threshold time.Duration) bool {
	return s.LastActivity.Before(now.Add(-threshold))
}
