package cleanup

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/ratelimit"
	"chatrelay/internal/app/room"
	"chatrelay/internal/app/session"
	"chatrelay/internal/pkg/clockx"
	"chatrelay/internal/pkg/logx"
)

type countingSweeper struct {
	runs      atomic.Int32
	threshold atomic.Int64
}

func (c *countingSweeper) CleanupStale(threshold time.Duration) chat.CleanupReport {
	c.runs.Add(1)
	c.threshold.Store(int64(threshold))
	return chat.CleanupReport{SessionsRemoved: 2, RoomMembersRemoved: 1}
}

type countingPurger struct {
	runs atomic.Int32
}

func (c *countingPurger) Purge(time.Duration) int {
	c.runs.Add(1)
	return 3
}

type nopPublisher struct{}

func (nopPublisher) BroadcastToRoom(string, chat.Event) {}
func (nopPublisher) SendToSession(string, chat.Event)   {}

var testConfig = Config{
	Interval:           5 * time.Minute,
	SessionIdleTimeout: 30 * time.Minute,
	RateEntryIdle:      30 * time.Minute,
}

func newFakeClock() *clockx.Fake {
	return clockx.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
}

func TestRunOnce(t *testing.T) {
	logx.SetOutput(io.Discard, zerolog.Disabled)
	sweeper, purger := &countingSweeper{}, &countingPurger{}

	s := NewScheduler(testConfig, sweeper, purger, newFakeClock())
	res := s.RunOnce()

	assert.Equal(t, Result{
		CleanupReport:     chat.CleanupReport{SessionsRemoved: 2, RoomMembersRemoved: 1},
		RateEntriesPurged: 3,
	}, res)
	assert.EqualValues(t, 30*time.Minute, sweeper.threshold.Load())
}

func TestSchedulerTicks(t *testing.T) {
	logx.SetOutput(io.Discard, zerolog.Disabled)
	sweeper, purger := &countingSweeper{}, &countingPurger{}
	clock := newFakeClock()

	s := NewScheduler(testConfig, sweeper, purger, clock)
	s.Start(context.Background())
	defer s.Stop()

	clock.Advance(4 * time.Minute)
	assert.Never(t, func() bool { return sweeper.runs.Load() > 0 }, 50*time.Millisecond, 10*time.Millisecond)

	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return sweeper.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	clock.Advance(5 * time.Minute)
	assert.Eventually(t, func() bool { return purger.runs.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerStops(t *testing.T) {
	logx.SetOutput(io.Discard, zerolog.Disabled)
	sweeper := &countingSweeper{}
	clock := newFakeClock()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(testConfig, sweeper, &countingPurger{}, clock)
	s.Start(ctx)

	cancel()
	s.Stop()
	s.Stop()

	clock.Advance(time.Hour)
	assert.Never(t, func() bool { return sweeper.runs.Load() > 0 }, 50*time.Millisecond, 10*time.Millisecond)
}

func TestSchedulerSweepsRealRegistries(t *testing.T) {
	logx.SetOutput(io.Discard, zerolog.Disabled)
	clock := newFakeClock()

	sessions := session.NewRegistry(clock)
	rooms := room.NewRegistry(clock)
	limiter := ratelimit.New(ratelimit.Config{}, clock)
	svc := chat.NewService(sessions, rooms, limiter, nopPublisher{}, clock, chat.Config{})

	require.Nil(t, svc.JoinRoom("S1", "rust", "alice"))
	require.Nil(t, svc.JoinRoom("S2", "general", "bob"))

	s := NewScheduler(testConfig, svc, limiter, clock)
	s.Start(context.Background())
	defer s.Stop()

	clock.Advance(35 * time.Minute)

	assert.Eventually(t, func() bool {
		return sessions.Len() == 0 && limiter.Len() == 0
	}, time.Second, 5*time.Millisecond)
	assert.False(t, rooms.Exists("rust"))
	assert.True(t, rooms.Exists("general"))
	assert.Empty(t, rooms.ListUsers("general"))
}

// gatedSweeper blocks inside CleanupStale until release is closed and records overlap.
type gatedSweeper struct {
	entered  chan struct{}
	release  chan struct{}
	inFlight atomic.Int32
	overlap  atomic.Bool
	runs     atomic.Int32
}

func (g *gatedSweeper) CleanupStale(time.Duration) chat.CleanupReport {
	if g.inFlight.Add(1) > 1 {
		g.overlap.Store(true)
	}
	defer g.inFlight.Add(-1)

	if g.runs.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return chat.CleanupReport{}
}

func TestSweepUsesThresholdAndSkipsPurge(t *testing.T) {
	logx.SetOutput(io.Discard, zerolog.Disabled)
	sweeper, purger := &countingSweeper{}, &countingPurger{}
	s := NewScheduler(testConfig, sweeper, purger, newFakeClock())

	report := s.Sweep(10 * time.Minute)

	assert.Equal(t, chat.CleanupReport{SessionsRemoved: 2, RoomMembersRemoved: 1}, report)
	assert.Equal(t, int64(10*time.Minute), sweeper.threshold.Load())
	assert.Zero(t, purger.runs.Load())
}

func TestSweepWaitsForScheduledRun(t *testing.T) {
	logx.SetOutput(io.Discard, zerolog.Disabled)
	sweeper := &gatedSweeper{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(testConfig, sweeper, &countingPurger{}, newFakeClock())

	runDone := make(chan struct{})
	go func() {
		s.RunOnce()
		close(runDone)
	}()
	<-sweeper.entered

	sweepDone := make(chan struct{})
	go func() {
		s.Sweep(time.Minute)
		close(sweepDone)
	}()

	select {
	case <-sweepDone:
		t.Fatal("manual sweep ran while a scheduled run was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(sweeper.release)
	<-runDone
	<-sweepDone

	assert.Equal(t, int32(2), sweeper.runs.Load())
	assert.False(t, sweeper.overlap.Load())
}
