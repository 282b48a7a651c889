// Package session ties one open session's resources together: the snapshot
// poller, the event stream, the reconciling store, and the operator-driven
// mutations. Closing the monitor releases all of them; nothing leaks across
// session switches.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/ormasoftchile/remex/pkg/api"
	"github.com/ormasoftchile/remex/pkg/model"
	"github.com/ormasoftchile/remex/pkg/reconcile"
	"github.com/ormasoftchile/remex/pkg/stream"
)

// DefaultPollInterval suits an open detail view. List views poll slower
// through their own timers; they do not use a Monitor.
const DefaultPollInterval = 2 * time.Second

// Options tunes a Monitor.
type Options struct {
	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration

	// DisableStream runs in polling-only mode. Reconciliation is fully
	// correct without the stream, just higher latency.
	DisableStream bool
}

// Monitor drives the canonical model for one open session.
type Monitor struct {
	client    *api.Client
	sessionID string
	store     *reconcile.Store

	poller *api.Poller
	events *stream.Client // nil in polling-only mode

	fatal  atomic.Pointer[api.FatalSessionError]
	cancel context.CancelFunc
	done   chan struct{}
}

// Open starts polling and, unless disabled, the event stream for sessionID.
// The returned Monitor must be closed when the session view exits.
func Open(ctx context.Context, c *api.Client, sessionID string, opts Options) *Monitor {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	m := &Monitor{
		client:    c,
		sessionID: sessionID,
		store:     reconcile.NewStore(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.poller = api.PollSession(ctx, c, sessionID, interval)

	if !opts.DisableStream {
		ev, err := stream.Subscribe(ctx, c.BaseURL, sessionID)
		if err != nil {
			// Polling alone is a sufficient degraded mode.
			fmt.Fprintf(os.Stderr, "session %s: event stream unavailable: %v\n", sessionID, err)
		} else {
			m.events = ev
		}
	}

	go m.run(ctx)
	return m
}

// Store exposes the canonical model. UI consumers read it and watch its
// Changed channel; they never touch the network layers directly.
func (m *Monitor) Store() *reconcile.Store { return m.store }

// Live reports whether the event stream is currently open. Purely a
// connectivity indicator; merge progress never depends on it.
func (m *Monitor) Live() bool {
	return m.events != nil && m.events.State() == stream.StateOpen
}

// PollFailures reports consecutive snapshot fetch failures.
func (m *Monitor) PollFailures() int { return m.poller.ConsecutiveFailures() }

// Fatal returns the error that tore the session down, or nil.
func (m *Monitor) Fatal() error {
	if fe := m.fatal.Load(); fe != nil {
		return fe
	}
	return nil
}

// Close releases the poller, the stream, and the merge goroutine. Safe on
// every exit path.
func (m *Monitor) Close() {
	m.cancel()
	<-m.done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer m.poller.Stop()
	if m.events != nil {
		defer m.events.Close()
	}

	var envelopes <-chan []model.EventEnvelope
	if m.events != nil {
		envelopes = m.events.Envelopes()
	}

	for {
		select {
		case snap, ok := <-m.poller.Snapshots():
			if !ok {
				return
			}
			m.store.ApplySnapshot(snap)

		case batch, ok := <-envelopes:
			if !ok {
				envelopes = nil // stream gone; keep polling
				continue
			}
			m.store.ApplyEnvelopes(batch)

		case err := <-m.poller.Fatal():
			fe := &api.FatalSessionError{SessionID: m.sessionID}
			errors.As(err, &fe)
			m.fatal.Store(fe)
			return

		case <-ctx.Done():
			return
		}
	}
}

// Approve submits the operator decision and applies it optimistically. The
// next snapshot overwrites the optimistic value with the server's.
func (m *Monitor) Approve(ctx context.Context, stepNumber int, approve bool, notes string) error {
	if err := m.client.ApproveStep(ctx, m.sessionID, stepNumber, approve, notes); err != nil {
		return err
	}
	m.store.ApplyApproval(stepNumber, approve)
	return nil
}

// SetStepResult records a manual operator success/failure override for an
// actionable step.
func (m *Monitor) SetStepResult(ctx context.Context, stepNumber int, success bool, notes string) error {
	if !m.store.StepActionable(stepNumber) {
		return &api.ConflictError{
			Op:      "set step result",
			Message: fmt.Sprintf("step %d is awaiting approval", stepNumber),
		}
	}
	sess := m.store.Session()
	st := sess.StepByNumber(stepNumber)
	if st == nil {
		return fmt.Errorf("session %s has no step %d", m.sessionID, stepNumber)
	}
	upd := api.StepUpdate{
		StepNumber: stepNumber,
		StepType:   st.Type,
		Completed:  true,
		Success:    &success,
	}
	if notes != "" {
		upd.Notes = &notes
	}
	if err := m.client.UpdateStep(ctx, m.sessionID, upd); err != nil {
		return err
	}
	m.store.ApplyEnvelope(model.EventEnvelope{
		Event:      model.EventStepCompleted,
		StepNumber: stepNumber,
		Timestamp:  time.Now().UTC(),
		Payload:    model.EventPayload{Success: triOf(success)},
	})
	return nil
}

// ReopenStep resets a finished step for re-execution, locally and on the
// server. If the server rejects the reset the local model is left alone.
func (m *Monitor) ReopenStep(ctx context.Context, stepNumber int) error {
	sess := m.store.Session()
	st := sess.StepByNumber(stepNumber)
	if st == nil {
		return fmt.Errorf("session %s has no step %d", m.sessionID, stepNumber)
	}
	if err := m.client.UpdateStep(ctx, m.sessionID, api.StepUpdate{
		StepNumber: stepNumber,
		StepType:   st.Type,
		Completed:  false,
	}); err != nil {
		return err
	}
	m.store.Reopen(stepNumber)
	return nil
}

// SubmitFeedback sends the end-of-session record.
func (m *Monitor) SubmitFeedback(ctx context.Context, fb model.Feedback) error {
	return m.client.CompleteSession(ctx, m.sessionID, fb)
}

func triOf(b bool) model.Tri {
	if b {
		return model.TriTrue
	}
	return model.TriFalse
}
