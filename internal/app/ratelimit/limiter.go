/*
Package ratelimit implements the per-session operation limiter with escalating penalties.

Every session gets an entry holding two independent counters, one for chat messages and one
for room operations, that share a fixed window. Exceeding a limit raises the session's penalty
level, and a higher level lengthens the window exponentially up to a ceiling. Levels decay on
their own clock: one level is forgiven for every full decay period that passes without a new
violation, whether or not the window has reset in between.

A rejection is a normal outcome reported through Decision, never an error.
*/
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/pkg/clockx"
	"chatrelay/internal/pkg/logx"
)

// Class selects which counter an operation is charged to.
type Class int

const (
	// ClassMessage covers chat messages.
	ClassMessage Class = iota
	// ClassRoomOp covers joining rooms.
	ClassRoomOp
)

func (c Class) String() string {
	switch c {
	case ClassMessage:
		return "message"
	case ClassRoomOp:
		return "room_op"
	default:
		return "unknown"
	}
}

// Config holds the limiter's tunables. Zero fields take the DefaultConfig value.
type Config struct {
	MessageLimit      int
	RoomOpLimit       int
	BaseWindow        time.Duration
	PenaltyMultiplier float64
	WindowCeiling     time.Duration
	MaxPenalties      int
	PenaltyDecay      time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MessageLimit:      30,
		RoomOpLimit:       5,
		BaseWindow:        time.Minute,
		PenaltyMultiplier: 2,
		WindowCeiling:     15 * time.Minute,
		MaxPenalties:      5,
		PenaltyDecay:      5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MessageLimit <= 0 {
		c.MessageLimit = d.MessageLimit
	}
	if c.RoomOpLimit <= 0 {
		c.RoomOpLimit = d.RoomOpLimit
	}
	if c.BaseWindow <= 0 {
		c.BaseWindow = d.BaseWindow
	}
	// a penalized window must always outlast the base window
	if c.PenaltyMultiplier <= 1 {
		c.PenaltyMultiplier = d.PenaltyMultiplier
	}
	if c.WindowCeiling <= c.BaseWindow {
		c.WindowCeiling = max(d.WindowCeiling, 2*c.BaseWindow)
	}
	if c.MaxPenalties <= 0 {
		c.MaxPenalties = d.MaxPenalties
	}
	if c.PenaltyDecay <= 0 {
		c.PenaltyDecay = d.PenaltyDecay
	}
	return c
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed bool
	// Remaining is how many operations of the class are left in the current window.
	Remaining int
	// ResetAt is when the current window ends.
	ResetAt time.Time
	// RetryAfter is set on rejection: the time until ResetAt.
	RetryAfter   time.Duration
	PenaltyLevel int
}

// Entry is a copy of a session's limiter state.
type Entry struct {
	MessageCount  int
	RoomOpCount   int
	WindowResetAt time.Time
	PenaltyLevel  int
	LastViolation time.Time
	LastActivity  time.Time
}

type entry struct {
	mu sync.Mutex
	Entry
	removed bool
}

// Limiter tracks rate-limit state per session id.
type Limiter struct {
	cfg Config

	// entries maps a session id to its state.
	entries map[string]*entry
	// mu protects the entries map; each entry has its own lock.
	mu sync.RWMutex

	clock  clockx.Clock
	logger zerolog.Logger
}

// New creates a Limiter. Zero-valued fields of cfg fall back to DefaultConfig.
func New(cfg Config, clock clockx.Clock) *Limiter {
	return &Limiter{
		cfg:     cfg.withDefaults(),
		entries: make(map[string]*entry),
		clock:   clock,
		logger:  logx.Component("RateLimiter"),
	}
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Allow charges one operation of class to sessionID and reports whether it is admitted.
func (l *Limiter) Allow(sessionID string, class Class) Decision {
	now := l.clock.Now()

	for {
		e := l.getOrCreate(sessionID, now)

		e.mu.Lock()
		if e.removed {
			// purged between lookup and lock
			e.mu.Unlock()
			continue
		}
		d := l.decide(e, class, now)
		e.mu.Unlock()

		if !d.Allowed {
			l.logger.Info().
				Str("session_id", sessionID).
				Stringer("class", class).
				Int("penalty_level", d.PenaltyLevel).
				Dur("retry_after", d.RetryAfter).
				Msg("Operation rate limited.")
		}
		return d
	}
}

// decide applies the window and penalty rules. e.mu must be held.
func (l *Limiter) decide(e *entry, class Class, now time.Time) Decision {
	e.LastActivity = now
	l.decay(e, now)

	if now.After(e.WindowResetAt) {
		e.MessageCount = 0
		e.RoomOpCount = 0
		e.WindowResetAt = now.Add(l.window(e.PenaltyLevel))
	}

	counter, limit := &e.MessageCount, l.cfg.MessageLimit
	if class == ClassRoomOp {
		counter, limit = &e.RoomOpCount, l.cfg.RoomOpLimit
	}

	if *counter < limit {
		*counter++
		return Decision{
			Allowed:      true,
			Remaining:    limit - *counter,
			ResetAt:      e.WindowResetAt,
			PenaltyLevel: e.PenaltyLevel,
		}
	}

	e.PenaltyLevel = min(e.PenaltyLevel+1, l.cfg.MaxPenalties)
	e.LastViolation = now
	if extended := now.Add(l.window(e.PenaltyLevel)); extended.After(e.WindowResetAt) {
		e.WindowResetAt = extended
	}

	return Decision{
		Allowed:      false,
		ResetAt:      e.WindowResetAt,
		RetryAfter:   e.WindowResetAt.Sub(now),
		PenaltyLevel: e.PenaltyLevel,
	}
}

// decay forgives one penalty level per full decay period since the last violation.
// The consumed periods are moved into LastViolation so each one is counted once.
func (l *Limiter) decay(e *entry, now time.Time) {
	if e.PenaltyLevel == 0 || e.LastViolation.IsZero() {
		return
	}
	periods := int(now.Sub(e.LastViolation) / l.cfg.PenaltyDecay)
	if periods <= 0 {
		return
	}
	periods = min(periods, e.PenaltyLevel)
	e.PenaltyLevel -= periods
	e.LastViolation = e.LastViolation.Add(time.Duration(periods) * l.cfg.PenaltyDecay)
}

// window returns min(base * multiplier^level, ceiling).
func (l *Limiter) window(level int) time.Duration {
	scaled := float64(l.cfg.BaseWindow) * math.Pow(l.cfg.PenaltyMultiplier, float64(level))
	if scaled >= float64(l.cfg.WindowCeiling) {
		return l.cfg.WindowCeiling
	}
	return time.Duration(scaled)
}

// Snapshot returns a copy of the session's state.
func (l *Limiter) Snapshot(sessionID string) (Entry, bool) {
	l.mu.RLock()
	e, ok := l.entries[sessionID]
	l.mu.RUnlock()

	if !ok {
		return Entry{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.Entry, true
}

// Forget drops the session's state.
func (l *Limiter) Forget(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[sessionID]; ok {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
		delete(l.entries, sessionID)
	}
}

// Len returns the number of tracked sessions.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}

// Purge removes entries with no activity for longer than idle and returns how many were removed.
// Candidates are gathered under the read lock and removed one at a time after a re-check.
func (l *Limiter) Purge(idle time.Duration) int {
	now := l.clock.Now()
	cutoff := now.Add(-idle)

	l.mu.RLock()
	candidates := make([]string, 0)
	for id, e := range l.entries {
		e.mu.Lock()
		if e.LastActivity.Before(cutoff) {
			candidates = append(candidates, id)
		}
		e.mu.Unlock()
	}
	l.mu.RUnlock()

	removed := 0
	for _, id := range candidates {
		if l.purgeIfIdle(id, cutoff) {
			removed++
		}
	}

	if removed > 0 {
		l.logger.Info().Int("removed", removed).Int("remaining", l.Len()).Msg("Idle rate limit entries purged.")
	}
	return removed
}

func (l *Limiter) purgeIfIdle(sessionID string, cutoff time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[sessionID]
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.LastActivity.Before(cutoff) {
		return false
	}
	e.removed = true
	delete(l.entries, sessionID)
	return true
}

func (l *Limiter) getOrCreate(sessionID string, now time.Time) *entry {
	l.mu.RLock()
	e, ok := l.entries[sessionID]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[sessionID]; ok {
		return e
	}
	e = &entry{Entry: Entry{
		WindowResetAt: now.Add(l.cfg.BaseWindow),
		LastActivity:  now,
	}}
	l.entries[sessionID] = e
	return e
}
