/*
Package randx generates the identifiers used by the relay.

Sessions, rooms and messages are all identified by random UUID v4 strings.
*/
package randx

import (
	"github.com/google/uuid"
)

// SessionID returns a new identifier for a transport connection.
func SessionID() string {
	return uuid.NewString()
}

// RoomID returns a new identifier for an explicitly created room.
func RoomID() string {
	return uuid.NewString()
}

// MessageID returns a new identifier for a chat message.
func MessageID() string {
	return uuid.NewString()
}

// IsUUID reports whether s is a canonically formatted UUID.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
