/*
Package room contains the Room Registry, which owns every chat room and its member set.

Rooms are created explicitly (CreateRoom) or implicitly by the first join to an unknown id.
A room that becomes empty is deleted unless its id is reserved (see IsReserved).

Locking: the registry map is guarded by Registry.mu and each room's members by room.mu.
The registry lock may be taken before a room lock, never the other way round. A room that is
pruned is first marked deleted under its own lock; a join that finds a deleted room goes back
to the registry and retries, so two concurrent first joins always end up in the same record.
*/
package room

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/clockx"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
)

// AutoCreatedDescription is the description given to rooms created by a join.
const AutoCreatedDescription = "Auto-created room"

// reservedPrefixes lists room id prefixes that are never deleted when empty.
var reservedPrefixes = []string{"general", "lobby"}

// IsReserved reports whether roomID is exempt from empty-room deletion.
// It is a prefix match, so "general-private" is reserved as well.
func IsReserved(roomID string) bool {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(roomID, p) {
			return true
		}
	}
	return false
}

// Info is a read-only snapshot of a room.
type Info struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
	IsPrivate    bool      `json:"isPrivate"`
	Reserved     bool      `json:"reserved"`
	UserCount    int       `json:"userCount"`
	MessageCount int64     `json:"messageCount"`
}

// Stats aggregates all rooms at call time.
type Stats struct {
	TotalRooms    int   `json:"totalRooms"`
	TotalUsers    int   `json:"totalUsers"`
	TotalMessages int64 `json:"totalMessages"`
}

type room struct {
	id          string
	name        string
	description string
	createdAt   time.Time
	isPrivate   bool

	messageCount atomic.Int64

	// mu protects members and deleted.
	mu      sync.RWMutex
	members map[string]user.Session
	deleted bool
}

func newRoom(id, name, description string, isPrivate bool, now time.Time) *room {
	return &room{
		id:          id,
		name:        name,
		description: description,
		createdAt:   now,
		isPrivate:   isPrivate,
		members:     make(map[string]user.Session),
	}
}

func (rm *room) snapshot() Info {
	rm.mu.RLock()
	count := len(rm.members)
	rm.mu.RUnlock()

	return Info{
		ID:           rm.id,
		Name:         rm.name,
		Description:  rm.description,
		CreatedAt:    rm.createdAt,
		IsPrivate:    rm.isPrivate,
		Reserved:     IsReserved(rm.id),
		UserCount:    count,
		MessageCount: rm.messageCount.Load(),
	}
}

func (rm *room) isDeleted() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	return rm.deleted
}

// Registry tracks rooms by id.
type Registry struct {
	// rooms maps a room id to its record.
	rooms map[string]*room

	// mu protects the rooms map (not the rooms themselves).
	mu sync.RWMutex

	clock  clockx.Clock
	logger zerolog.Logger
}

// NewRegistry creates an empty registry reading time from clock.
func NewRegistry(clock clockx.Clock) *Registry {
	return &Registry{
		rooms:  make(map[string]*room),
		clock:  clock,
		logger: logx.Component("RoomRegistry"),
	}
}

// CreateRoom creates a room with a fresh id. It never fails.
func (r *Registry) CreateRoom(name, description string, isPrivate bool) Info {
	rm := newRoom(randx.RoomID(), name, description, isPrivate, r.clock.Now())

	r.mu.Lock()
	r.rooms[rm.id] = rm
	r.mu.Unlock()

	r.logger.Info().Str("room_id", rm.id).Str("name", name).Bool("private", isPrivate).Msg("Room created.")
	return rm.snapshot()
}

// GetRoom returns the room with the given id.
func (r *Registry) GetRoom(roomID string) (Info, bool) {
	rm, ok := r.lookup(roomID)
	if !ok {
		return Info{}, false
	}
	return rm.snapshot(), true
}

// Exists reports whether a live room with the given id exists.
func (r *Registry) Exists(roomID string) bool {
	_, ok := r.lookup(roomID)
	return ok
}

// GetOrAutoCreate returns the room, creating it with a derived name when it does not exist.
func (r *Registry) GetOrAutoCreate(roomID string) Info {
	return r.getOrCreate(roomID).snapshot()
}

// AddUser puts the session into the room, auto-creating the room if needed.
// It returns true when the session joined and false when it was already a member, in which
// case the existing entry is updated in place.
func (r *Registry) AddUser(roomID, username, sessionID string) bool {
	now := r.clock.Now()

	for {
		rm := r.getOrCreate(roomID)

		rm.mu.Lock()
		if rm.deleted {
			// pruned between lookup and lock; fetch the replacement
			rm.mu.Unlock()
			continue
		}

		if existing, ok := rm.members[sessionID]; ok {
			existing.Username = username
			existing.Touch(now)
			rm.members[sessionID] = existing
			rm.mu.Unlock()

			r.logger.Debug().Str("room_id", roomID).Str("session_id", sessionID).Msg("Session already in room; entry refreshed.")
			return false
		}

		member := user.New(sessionID, username, now)
		member.RoomID = roomID
		rm.members[sessionID] = member
		total := len(rm.members)
		rm.mu.Unlock()

		r.logger.Info().
			Str("room_id", roomID).
			Str("session_id", sessionID).
			Str("username", username).
			Int("total_users", total).
			Msg("User added to room.")
		return true
	}
}

// RemoveUser takes the session out of the room. When the room becomes empty and is not
// reserved it is deleted. It reports whether the session was a member.
func (r *Registry) RemoveUser(roomID, sessionID string) bool {
	rm, ok := r.lookup(roomID)
	if !ok {
		return false
	}

	rm.mu.Lock()
	member, ok := rm.members[sessionID]
	if !ok {
		rm.mu.Unlock()
		return false
	}
	delete(rm.members, sessionID)
	prune := r.markIfPrunable(rm)
	rm.mu.Unlock()

	r.logger.Info().
		Str("room_id", roomID).
		Str("session_id", sessionID).
		Str("username", member.Username).
		Msg("User removed from room.")

	if prune {
		r.unlink(rm)
	}
	return true
}

// IncrementMessageCount bumps the room's message counter. Unknown rooms are ignored.
func (r *Registry) IncrementMessageCount(roomID string) {
	if rm, ok := r.lookup(roomID); ok {
		rm.messageCount.Add(1)
	}
}

// TouchUser refreshes a member's activity so the member sweep keeps it.
func (r *Registry) TouchUser(roomID, sessionID string) {
	rm, ok := r.lookup(roomID)
	if !ok {
		return
	}
	now := r.clock.Now()

	rm.mu.Lock()
	if m, ok := rm.members[sessionID]; ok {
		m.Touch(now)
		rm.members[sessionID] = m
	}
	rm.mu.Unlock()
}

// ListUsers returns the room's members ordered by join time. Unknown rooms yield an empty slice.
func (r *Registry) ListUsers(roomID string) []user.Session {
	rm, ok := r.lookup(roomID)
	if !ok {
		return []user.Session{}
	}

	rm.mu.RLock()
	out := make([]user.Session, 0, len(rm.members))
	for _, m := range rm.members {
		out = append(out, m)
	}
	rm.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// ListRooms returns every room ordered by creation time.
func (r *Registry) ListRooms() []Info {
	rooms := r.all()

	out := make([]Info, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm.snapshot())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// DeleteRoom removes the room regardless of its members or reserved status and returns the
// members it had, so the caller can detach and notify them.
func (r *Registry) DeleteRoom(roomID string) (Info, []user.Session, bool) {
	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	if ok {
		delete(r.rooms, roomID)
	}
	r.mu.Unlock()

	if !ok {
		return Info{}, nil, false
	}

	info := rm.snapshot()

	rm.mu.Lock()
	rm.deleted = true
	members := make([]user.Session, 0, len(rm.members))
	for _, m := range rm.members {
		members = append(members, m)
	}
	rm.members = make(map[string]user.Session)
	rm.mu.Unlock()

	r.logger.Info().Str("room_id", roomID).Int("evicted", len(members)).Msg("Room deleted.")
	return info, members, true
}

// Stats sums users and messages over all rooms at call time.
func (r *Registry) Stats() Stats {
	var st Stats
	for _, rm := range r.all() {
		rm.mu.RLock()
		if !rm.deleted {
			st.TotalRooms++
			st.TotalUsers += len(rm.members)
			st.TotalMessages += rm.messageCount.Load()
		}
		rm.mu.RUnlock()
	}
	return st
}

// SweepStale removes members idle for longer than threshold and deletes rooms left empty.
// Empty non-reserved rooms created more than threshold ago are deleted too, which reclaims
// rooms that were created but never joined. Each removal takes its own short lock.
func (r *Registry) SweepStale(threshold time.Duration) int {
	return r.SweepStaleFunc(threshold, nil)
}

// SweepStaleFunc is SweepStale with a callback receiving each removed member. fn runs
// outside every lock.
func (r *Registry) SweepStaleFunc(threshold time.Duration, fn func(user.Session)) int {
	now := r.clock.Now()
	removed := 0

	for _, rm := range r.all() {
		rm.mu.RLock()
		candidates := make([]string, 0)
		for id, m := range rm.members {
			if m.IsStale(now, threshold) {
				candidates = append(candidates, id)
			}
		}
		rm.mu.RUnlock()

		for _, id := range candidates {
			m, ok := r.removeIfStale(rm, id, now, threshold)
			if !ok {
				continue
			}
			removed++
			if fn != nil {
				fn(m)
			}
		}

		r.pruneIfIdle(rm, now, threshold)
	}

	if removed > 0 {
		r.logger.Info().Int("removed", removed).Msg("Stale room members removed.")
	}
	return removed
}

func (r *Registry) removeIfStale(rm *room, sessionID string, now time.Time, threshold time.Duration) (user.Session, bool) {
	rm.mu.Lock()
	m, ok := rm.members[sessionID]
	if !ok || !m.IsStale(now, threshold) {
		rm.mu.Unlock()
		return user.Session{}, false
	}
	delete(rm.members, sessionID)
	prune := r.markIfPrunable(rm)
	rm.mu.Unlock()

	r.logger.Info().
		Str("room_id", rm.id).
		Str("session_id", sessionID).
		Str("username", m.Username).
		Msg("Stale member removed from room.")

	if prune {
		r.unlink(rm)
	}
	return m, true
}

func (r *Registry) pruneIfIdle(rm *room, now time.Time, threshold time.Duration) bool {
	rm.mu.Lock()
	prune := false
	if rm.createdAt.Before(now.Add(-threshold)) {
		prune = r.markIfPrunable(rm)
	}
	rm.mu.Unlock()

	if prune {
		r.unlink(rm)
	}
	return prune
}

// markIfPrunable marks an empty, non-reserved room deleted. rm.mu must be held.
func (r *Registry) markIfPrunable(rm *room) bool {
	if rm.deleted || len(rm.members) > 0 || IsReserved(rm.id) {
		return false
	}
	rm.deleted = true
	return true
}

// unlink removes a room marked deleted from the map, unless it was already replaced.
func (r *Registry) unlink(rm *room) {
	r.mu.Lock()
	if cur, ok := r.rooms[rm.id]; ok && cur == rm {
		delete(r.rooms, rm.id)
	}
	r.mu.Unlock()

	r.logger.Info().Str("room_id", rm.id).Msg("Empty room cleaned up.")
}

// lookup returns the live room with the given id.
func (r *Registry) lookup(roomID string) (*room, bool) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()

	if !ok || rm.isDeleted() {
		return nil, false
	}
	return rm, true
}

// getOrCreate returns the live room with the given id, inserting a new one if there is none.
// Double-checked locking makes the insert atomic: concurrent callers for an unknown id all
// receive the same record.
func (r *Registry) getOrCreate(roomID string) *room {
	if rm, ok := r.lookup(roomID); ok {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[roomID]; ok && !rm.isDeleted() {
		return rm
	}

	rm := newRoom(roomID, autoName(roomID), AutoCreatedDescription, false, r.clock.Now())
	r.rooms[roomID] = rm

	r.logger.Info().Str("room_id", roomID).Str("name", rm.name).Msg("Room auto-created.")
	return rm
}

// all returns the current room records without holding the registry lock afterwards.
func (r *Registry) all() []*room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm)
	}
	return out
}

// autoName derives a display name from the first eight characters of the id.
func autoName(roomID string) string {
	runes := []rune(roomID)
	if len(runes) > 8 {
		runes = runes[:8]
	}
	return "Room " + string(runes)
}
