/*
Package cleanup runs the periodic stale-state sweep.

On every tick the Scheduler removes idle sessions and room members through the chat service
and purges idle rate-limit entries. Each sweep is incremental inside the registries, so a run
never holds a registry lock for more than one key.
*/
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/pkg/clockx"
	"chatrelay/internal/pkg/logx"
)

// StaleSweeper removes idle sessions and room members.
type StaleSweeper interface {
	CleanupStale(threshold time.Duration) chat.CleanupReport
}

// Purger removes idle rate-limit entries.
type Purger interface {
	Purge(idle time.Duration) int
}

// Config holds the sweep schedule and thresholds.
type Config struct {
	Interval           time.Duration
	SessionIdleTimeout time.Duration
	RateEntryIdle      time.Duration
}

// Result is what one run removed.
type Result struct {
	chat.CleanupReport
	RateEntriesPurged int
}

// Scheduler drives the sweep on a ticker.
type Scheduler struct {
	cfg     Config
	sweeper StaleSweeper
	purger  Purger
	clock   clockx.Clock

	// mu serializes RunOnce and Sweep, so a manual sweep never overlaps a scheduled one.
	mu sync.Mutex

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger zerolog.Logger
}

// NewScheduler creates a stopped Scheduler.
func NewScheduler(cfg Config, sweeper StaleSweeper, purger Purger, clock clockx.Clock) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		sweeper: sweeper,
		purger:  purger,
		clock:   clock,
		logger:  logx.Component("CleanupScheduler"),
	}
}

// Start launches the sweep loop. It stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	ticker := s.clock.NewTicker(s.cfg.Interval)

	s.wg.Add(1)
	go s.run(ctx, ticker)

	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Dur("session_idle_timeout", s.cfg.SessionIdleTimeout).
		Dur("rate_entry_idle", s.cfg.RateEntryIdle).
		Msg("Cleanup scheduler started.")
}

// Stop ends the loop and waits for a run in progress to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, ticker clockx.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Cleanup scheduler stopped.")
			return
		case <-ticker.C():
			s.RunOnce()
		}
	}
}

// RunOnce performs one sweep immediately.
func (s *Scheduler) RunOnce() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.clock.Now()

	res := Result{CleanupReport: s.sweeper.CleanupStale(s.cfg.SessionIdleTimeout)}
	res.RateEntriesPurged = s.purger.Purge(s.cfg.RateEntryIdle)

	s.logger.Debug().
		Int("sessions_removed", res.SessionsRemoved).
		Int("members_removed", res.RoomMembersRemoved).
		Int("rate_entries_purged", res.RateEntriesPurged).
		Dur("took", s.clock.Now().Sub(start)).
		Msg("Cleanup run finished.")
	return res
}

// Sweep removes sessions and room members idle longer than threshold, outside the schedule.
// It waits for a scheduled run in progress and does not purge rate-limit entries.
func (s *Scheduler) Sweep(threshold time.Duration) chat.CleanupReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.sweeper.CleanupStale(threshold)

	s.logger.Info().
		Dur("threshold", threshold).
		Int("sessions_removed", report.SessionsRemoved).
		Int("members_removed", report.RoomMembersRemoved).
		Msg("Manual cleanup finished.")
	return report
}
