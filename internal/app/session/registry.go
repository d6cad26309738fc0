/*
Package session contains the Session Registry, the owner of every active user session.

The registry is keyed by the transport-assigned session id. Callers only see copies of
user.Session; all mutation goes through the methods below, each of which is atomic on its own.
"Not found" is a normal outcome and is reported through the boolean results, never as an error.
*/
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/clockx"
	"chatrelay/internal/pkg/logx"
)

// Stats is a point-in-time summary of the registry.
type Stats struct {
	TotalSessions    int `json:"totalSessions"`
	ActiveSessions   int `json:"activeSessions"`
	InactiveSessions int `json:"inactiveSessions"`
}

// Registry tracks user sessions by session id.
type Registry struct {
	// sessions maps a session id to its state.
	sessions map[string]*user.Session

	// mu protects sessions and the records it points to.
	mu sync.RWMutex

	clock  clockx.Clock
	logger zerolog.Logger
}

// NewRegistry creates an empty registry reading time from clock.
func NewRegistry(clock clockx.Clock) *Registry {
	return &Registry{
		sessions: make(map[string]*user.Session),
		clock:    clock,
		logger:   logx.Component("SessionRegistry"),
	}
}

// CreateOrUpdate registers sessionID as username. An existing session gets its username
// replaced and its activity refreshed; a new one starts active.
func (r *Registry) CreateOrUpdate(sessionID, username string) user.Session {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		created := user.New(sessionID, username, now)
		r.sessions[sessionID] = &created

		r.logger.Debug().Str("session_id", sessionID).Str("username", username).Msg("Session created.")
		return created
	}

	s.Username = username
	s.Touch(now)

	return *s
}

// Get returns the session with the given id.
func (r *Registry) Get(sessionID string) (user.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return user.Session{}, false
	}
	return *s, true
}

// Remove deactivates and deletes the session, returning the removed record.
func (r *Registry) Remove(sessionID string) (user.Session, bool) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return user.Session{}, false
	}

	delete(r.sessions, sessionID)
	s.IsActive = false
	s.Touch(now)

	return *s, true
}

// TouchActivity refreshes the session's last activity. Unknown ids are ignored.
func (r *Registry) TouchActivity(sessionID string) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		s.Touch(now)
	}
}

// AssignRoom records roomID ("" to clear) as the session's current room.
// It reports whether the session exists.
func (r *Registry) AssignRoom(sessionID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	s.RoomID = roomID
	return true
}

// ClearRoom clears the session's room association if it currently points at roomID.
// A session that has already moved to another room is left untouched.
func (r *Registry) ClearRoom(sessionID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.RoomID != roomID {
		return false
	}
	s.RoomID = ""
	return true
}

// FindByUsername returns the earliest-joined session using username.
// A linear scan is fine for the expected hundreds of sessions.
func (r *Registry) FindByUsername(username string) (user.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		found user.Session
		ok    bool
	)
	for _, s := range r.sessions {
		if s.Username != username {
			continue
		}
		if !ok || s.JoinedAt.Before(found.JoinedAt) {
			found, ok = *s, true
		}
	}
	return found, ok
}

// IsUserActive reports whether any active session uses username.
func (r *Registry) IsUserActive(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.Username == username && s.IsActive {
			return true
		}
	}
	return false
}

// Deactivate marks the session soft-offline without removing it.
func (r *Registry) Deactivate(sessionID string) bool {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	s.IsActive = false
	s.Touch(now)

	r.logger.Info().Str("session_id", sessionID).Str("username", s.Username).Msg("Session deactivated.")
	return true
}

// Reactivate marks a soft-offline session active again and refreshes its activity.
func (r *Registry) Reactivate(sessionID string) bool {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	s.IsActive = true
	s.Touch(now)

	r.logger.Info().Str("session_id", sessionID).Str("username", s.Username).Msg("Session reactivated.")
	return true
}

// List returns a copy of every session ordered by join time.
func (r *Registry) List() []user.Session {
	r.mu.RLock()
	out := make([]user.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Stats summarizes active and inactive sessions.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Stats{TotalSessions: len(r.sessions)}
	for _, s := range r.sessions {
		if s.IsActive {
			st.ActiveSessions++
		}
	}
	st.InactiveSessions = st.TotalSessions - st.ActiveSessions
	return st
}

// SweepStale removes every session idle for longer than threshold and returns how many
// were removed.
func (r *Registry) SweepStale(threshold time.Duration) int {
	return r.SweepStaleFunc(threshold, nil)
}

// SweepStaleFunc is SweepStale with a callback receiving each removed session.
// Candidates are collected under a read lock, then each one is re-checked and removed under
// its own short write lock, so concurrent operations are never blocked for the whole sweep.
// fn runs outside the lock.
func (r *Registry) SweepStaleFunc(threshold time.Duration, fn func(user.Session)) int {
	now := r.clock.Now()

	r.mu.RLock()
	candidates := make([]string, 0)
	for id, s := range r.sessions {
		if s.IsStale(now, threshold) {
			candidates = append(candidates, id)
		}
	}
	r.mu.RUnlock()

	removed := 0
	for _, id := range candidates {
		s, ok := r.removeIfStale(id, now, threshold)
		if !ok {
			continue
		}
		removed++

		r.logger.Info().
			Str("session_id", s.SessionID).
			Str("username", s.Username).
			Time("last_activity", s.LastActivity).
			Msg("Stale session removed.")

		if fn != nil {
			fn(s)
		}
	}

	if removed > 0 {
		r.logger.Info().Int("removed", removed).Dur("threshold", threshold).Msg("Stale session sweep completed.")
	}
	return removed
}

// removeIfStale deletes the session only if it is still stale; it may have been touched
// since the candidate scan.
func (r *Registry) removeIfStale(sessionID string, now time.Time, threshold time.Duration) (user.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || !s.IsStale(now, threshold) {
		return user.Session{}, false
	}

	delete(r.sessions, sessionID)
	s.IsActive = false

	return *s, true
}
