package api

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ormasoftchile/remex/pkg/model"
)

// Poller fetches full session snapshots on a fixed interval. Polling is the
// degraded-but-sufficient path when the event stream is down, so a failed
// fetch is simply retried on the next tick; no backoff. The consecutive
// failure count is exposed so the UI can surface connectivity loss.
type Poller struct {
	snapshots chan model.ExecutionSession
	fatal     chan error

	failures atomic.Int64
	cancel   context.CancelFunc
	done     chan struct{}
}

// PollSession starts polling sessionID every interval until ctx is cancelled
// or Stop is called. The first fetch happens immediately.
func PollSession(ctx context.Context, c *Client, sessionID string, interval time.Duration) *Poller {
	ctx, cancel := context.WithCancel(ctx)
	p := &Poller{
		snapshots: make(chan model.ExecutionSession, 1),
		fatal:     make(chan error, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go p.run(ctx, c, sessionID, interval)
	return p
}

// Snapshots yields each fetched snapshot. The channel is closed when the
// poller stops.
func (p *Poller) Snapshots() <-chan model.ExecutionSession { return p.snapshots }

// Fatal yields at most one FatalSessionError, after which the poller stops.
func (p *Poller) Fatal() <-chan error { return p.fatal }

// ConsecutiveFailures reports how many fetches in a row have failed.
// Reset to zero by any successful fetch.
func (p *Poller) ConsecutiveFailures() int {
	return int(p.failures.Load())
}

// Stop cancels polling and waits for the loop to exit.
func (p *Poller) Stop() {
	p.cancel()
	<-p.done
}

func (p *Poller) run(ctx context.Context, c *Client, sessionID string, interval time.Duration) {
	defer close(p.done)
	defer close(p.snapshots)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s, err := c.GetSession(ctx, sessionID)
		switch {
		case err == nil:
			p.failures.Store(0)
			select {
			case p.snapshots <- s:
			case <-ctx.Done():
				return
			}
		case isFatal(err):
			select {
			case p.fatal <- err:
			default:
			}
			return
		default:
			// Transport failure: count it and retry on the next tick.
			p.failures.Add(1)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func isFatal(err error) bool {
	var fe *FatalSessionError
	return errors.As(err, &fe)
}
