package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := New("s1", "alice", now)

	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, "alice", s.Username)
	assert.Empty(t, s.RoomID)
	assert.True(t, s.IsActive)
	assert.Equal(t, now, s.JoinedAt)
	assert.Equal(t, now, s.LastActivity)
}

func TestTouchIsMonotonic(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := New("s1", "alice", now)

	s.Touch(now.Add(time.Minute))
	assert.Equal(t, now.Add(time.Minute), s.LastActivity)

	s.Touch(now)
	assert.Equal(t, now.Add(time.Minute), s.LastActivity, "touch must never move activity backwards")
	assert.False(t, s.LastActivity.Before(s.JoinedAt))
}

func TestIsStale(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := New("s1", "alice", now)

	assert.False(t, s.IsStale(now.Add(29*time.Minute), 30*time.Minute))
	assert.False(t, s.IsStale(now.Add(30*time.Minute), 30*time.Minute))
	assert.True(t, s.IsStale(now.Add(31*time.Minute), 30*time.Minute))
}
