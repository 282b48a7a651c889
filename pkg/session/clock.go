package session

import (
	"context"
	"sync"
	"time"
)

// ElapsedClock is the ticking session timer. It is seeded from the server's
// startedAt when known and from local time otherwise, and it is driven by a
// local one-second ticker only — polling or stream jitter never moves it.
type ElapsedClock struct {
	mu       sync.Mutex
	start    time.Time
	frozen   time.Duration
	isFrozen bool

	ticks  chan time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

// NewElapsedClock starts ticking. A zero start means the server has not yet
// stamped the session; local "now" stands in until SetStart corrects it.
func NewElapsedClock(ctx context.Context, start time.Time) *ElapsedClock {
	if start.IsZero() {
		start = time.Now()
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &ElapsedClock{
		start:  start,
		ticks:  make(chan time.Duration, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// SetStart rebases the clock once the authoritative start time arrives.
func (c *ElapsedClock) SetStart(start time.Time) {
	if start.IsZero() {
		return
	}
	c.mu.Lock()
	c.start = start
	c.mu.Unlock()
}

// FreezeAt pins the elapsed time once the session reaches a terminal
// status, so the counter stops climbing after completion. A zero end time
// freezes at the current elapsed value.
func (c *ElapsedClock) FreezeAt(end time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isFrozen {
		return
	}
	d := time.Since(c.start)
	if !end.IsZero() {
		d = end.Sub(c.start)
	}
	if d < 0 {
		d = 0
	}
	c.frozen = d.Truncate(time.Second)
	c.isFrozen = true
}

// Resume unfreezes the clock, for a session that left its terminal status
// again (a reopened step).
func (c *ElapsedClock) Resume() {
	c.mu.Lock()
	c.isFrozen = false
	c.mu.Unlock()
}

// Elapsed is the time since session start, truncated to whole seconds.
// A frozen clock keeps returning the pinned value.
func (c *ElapsedClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isFrozen {
		return c.frozen
	}
	return time.Since(c.start).Truncate(time.Second)
}

// Ticks yields the elapsed duration once per second. Values coalesce for a
// slow consumer. The channel is closed when the clock stops.
func (c *ElapsedClock) Ticks() <-chan time.Duration { return c.ticks }

// Stop halts the ticker. Idempotent.
func (c *ElapsedClock) Stop() {
	c.cancel()
	<-c.done
}

func (c *ElapsedClock) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.ticks)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			select {
			case c.ticks <- c.Elapsed():
			default:
				// Drop the stale value and publish the fresh one.
				select {
				case <-c.ticks:
				default:
				}
				select {
				case c.ticks <- c.Elapsed():
				default:
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
