package clock_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-refresher/clock"
	"github.com/stretchr/testify/require"
)

type fakeNow struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestClock(t *testing.T, fired *atomic.Int32) (*clock.Clock, *fakeNow) {
	t.Helper()
	now := &fakeNow{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	// A long interval keeps the background ticker out of the way; ticks are driven by hand.
	c := clock.New(func() { fired.Add(1) }, clock.WithNowFunc(now.Now), clock.WithInterval(time.Hour))
	t.Cleanup(c.Stop)
	return c, now
}

func TestClockFiresOnceAtDeadline(t *testing.T) {
	var fired atomic.Int32
	c, now := newTestClock(t, &fired)

	deadline := now.Now().Add(2700 * time.Second)
	c.Start(deadline)
	require.True(t, c.Active())
	require.Equal(t, deadline, c.Deadline())

	c.Tick()
	require.Equal(t, int32(0), fired.Load(), "tick before the deadline is a no-op")

	now.Advance(2700 * time.Second)
	c.Tick()
	require.Equal(t, int32(1), fired.Load())
	require.False(t, c.Active(), "firing cancels the timer")

	now.Advance(time.Hour)
	c.Tick()
	require.Equal(t, int32(1), fired.Load(), "the clock does not reschedule itself")
}

func TestClockPastDeadlineFiresImmediately(t *testing.T) {
	var fired atomic.Int32
	c, now := newTestClock(t, &fired)

	c.Start(now.Now().Add(-time.Second))
	require.Equal(t, int32(1), fired.Load())
	require.False(t, c.Active())
}

func TestClockRestartCancelsPrevious(t *testing.T) {
	var fired atomic.Int32
	c, now := newTestClock(t, &fired)

	c.Start(now.Now().Add(time.Minute))
	c.Start(now.Now().Add(time.Hour))
	require.True(t, c.Active())
	require.Equal(t, now.Now().Add(time.Hour), c.Deadline())

	now.Advance(2 * time.Minute)
	c.Tick()
	require.Equal(t, int32(0), fired.Load(), "the first deadline was superseded")

	now.Advance(time.Hour)
	c.Tick()
	require.Equal(t, int32(1), fired.Load())
}

func TestClockZeroDeadlineIsUnarmed(t *testing.T) {
	var fired atomic.Int32
	c, now := newTestClock(t, &fired)

	c.Start(time.Time{})
	now.Advance(24 * time.Hour)
	c.Tick()
	require.Equal(t, int32(0), fired.Load())
	require.True(t, c.Active())
}

func TestClockStop(t *testing.T) {
	var fired atomic.Int32
	c, now := newTestClock(t, &fired)

	c.Start(now.Now().Add(time.Minute))
	c.Stop()
	require.False(t, c.Active())

	now.Advance(time.Hour)
	c.Tick()
	require.Equal(t, int32(0), fired.Load())
}

func TestClockPollsInBackground(t *testing.T) {
	var fired atomic.Int32
	now := &fakeNow{now: time.Now()}
	c := clock.New(func() { fired.Add(1) }, clock.WithNowFunc(now.Now), clock.WithInterval(5*time.Millisecond))
	t.Cleanup(c.Stop)

	c.Start(now.Now().Add(time.Minute))
	now.Advance(2 * time.Minute)

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, c.Active())
}

func TestClockFireCanRestart(t *testing.T) {
	now := &fakeNow{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	var c *clock.Clock
	var fired atomic.Int32
	c = clock.New(func() {
		fired.Add(1)
		c.Start(now.Now().Add(time.Hour))
	}, clock.WithNowFunc(now.Now), clock.WithInterval(time.Hour))
	t.Cleanup(c.Stop)

	c.Start(now.Now())
	require.Equal(t, int32(1), fired.Load())
	require.True(t, c.Active(), "a start from inside fire re-arms the clock")
	require.Equal(t, now.Now().Add(time.Hour), c.Deadline())
}

func TestClockClose(t *testing.T) {
	var fired atomic.Int32
	c, now := newTestClock(t, &fired)

	c.Start(now.Now().Add(time.Minute))
	c.Close()
	require.False(t, c.Active())
	require.True(t, c.Deadline().IsZero())

	c.Start(now.Now().Add(-time.Second))
	require.False(t, c.Active(), "a closed clock ignores Start")
	require.Equal(t, int32(0), fired.Load())

	now.Advance(time.Hour)
	c.Tick()
	require.Equal(t, int32(0), fired.Load())
}
