package randx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDsAreUniqueUUIDs(t *testing.T) {
	seen := make(map[string]struct{})

	for range 100 {
		for _, id := range []string{SessionID(), RoomID(), MessageID()} {
			assert.True(t, IsUUID(id), "expected %q to be a UUID", id)
			_, dup := seen[id]
			assert.False(t, dup, "duplicate id %q", id)
			seen[id] = struct{}{}
		}
	}
}

func TestIsUUID(t *testing.T) {
	assert.False(t, IsUUID(""))
	assert.False(t, IsUUID("general"))
	assert.False(t, IsUUID("{6ba7b810-9dad-11d1-80b4-00c04fd430c8}"))
	assert.True(t, IsUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
}
