// Package stream maintains the per-session WebSocket event feed.
//
// The feed is receive-only: the server pushes {"events": [...]} batches and
// the client sends nothing. The stream is an optimization over polling, not
// a requirement — reconciliation stays correct with the stream permanently
// down, so connection trouble here only ever surfaces as a connectivity
// indicator.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ormasoftchile/remex/pkg/model"
)

// State is the connection state exposed to the UI.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 10 * time.Second

	// A connection that survives this long is considered healthy, so the
	// next failure starts the backoff ladder from the bottom again.
	resetGrace = 10 * time.Second
)

// DeriveWebSocketURL maps the REST base URL onto the session event feed:
// http becomes ws, https becomes wss, and the session path is appended to
// whatever path prefix the base URL carries.
func DeriveWebSocketURL(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("base URL %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	u.Path = path.Join(u.Path, "sessions", sessionID, "events")
	return u.String(), nil
}

// Client owns one WebSocket subscription and its reconnect loop.
type Client struct {
	url       string
	dialer    *websocket.Dialer
	envelopes chan []model.EventEnvelope

	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}

	initial time.Duration
	max     time.Duration
	grace   time.Duration
}

// Subscribe opens the event feed for sessionID and keeps it open until ctx
// is cancelled or Close is called. It fails only on an unusable base URL;
// dial failures are retried in the background.
func Subscribe(ctx context.Context, baseURL, sessionID string) (*Client, error) {
	wsURL, err := DeriveWebSocketURL(baseURL, sessionID)
	if err != nil {
		return nil, err
	}
	return subscribe(ctx, wsURL, websocket.DefaultDialer, initialBackoff, maxBackoff, resetGrace), nil
}

func subscribe(ctx context.Context, wsURL string, dialer *websocket.Dialer, initial, max, grace time.Duration) *Client {
	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		url:       wsURL,
		dialer:    dialer,
		envelopes: make(chan []model.EventEnvelope, 4),
		cancel:    cancel,
		done:      make(chan struct{}),
		initial:   initial,
		max:       max,
		grace:     grace,
	}
	c.state.Store(int32(StateConnecting))
	go c.run(ctx)
	return c
}

// Envelopes yields each decoded event batch in delivery order. The channel
// is closed when the client stops.
func (c *Client) Envelopes() <-chan []model.EventEnvelope { return c.envelopes }

// State reports the current connection state.
func (c *Client) State() State { return State(c.state.Load()) }

// Close tears the connection down and suppresses the reconnect loop.
func (c *Client) Close() {
	c.cancel()
	<-c.done
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.envelopes)
	defer c.state.Store(int32(StateClosed))

	backoff := c.initial
	for {
		c.state.Store(int32(StateConnecting))
		conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, c.max)
			continue
		}

		c.state.Store(int32(StateOpen))
		openedAt := time.Now()
		c.readLoop(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		if time.Since(openedAt) >= c.grace {
			backoff = c.initial
		}
		c.state.Store(int32(StateConnecting))
		if !sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, c.max)
	}
}

// readLoop pumps messages until the connection drops or ctx is cancelled.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	// ReadMessage has no context support; closing the connection is the
	// only way to unblock it on cancellation.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		batch, err := model.DecodeEventBatch(data)
		if err != nil {
			// Malformed frames are dropped; the next snapshot resyncs
			// whatever they carried.
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				fmt.Fprintf(os.Stderr, "stream: dropping frame: %v\n", ve)
			}
			continue
		}
		if len(batch) == 0 {
			continue
		}
		select {
		case c.envelopes <- batch:
		case <-ctx.Done():
			return
		}
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		return max
	}
	return cur
}

// sleep waits for d, returning false if ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
