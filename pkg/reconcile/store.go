// Package reconcile merges the two session update channels — authoritative
// REST snapshots and low-latency WebSocket envelopes — into one canonical
// in-memory model.
//
// The merge is idempotent and tolerant of duplicate delivery: replaying the
// same snapshot or envelope leaves the model unchanged. That property is
// what lets the poller, the stream, and optimistic operator mutations
// interleave freely without locks beyond the store's own.
package reconcile

import (
	"sort"
	"sync"
	"time"

	"github.com/ormasoftchile/remex/pkg/model"
)

// Store holds the canonical model for one open session.
type Store struct {
	mu      sync.Mutex
	session model.ExecutionSession

	// last remembers the most recent envelope applied per step. Replaying
	// an identical envelope is a no-op, which keeps duplicate delivery
	// (including the envelope/snapshot/envelope pattern) harmless. The
	// wire protocol carries no sequence numbers, so beyond this the rule
	// is last-applied-wins.
	last map[int]model.EventEnvelope

	atHundred       bool
	feedbackPending bool
	changed         chan struct{}
}

// NewStore creates an empty store; the first snapshot populates it.
func NewStore() *Store {
	return &Store{
		last:    make(map[int]model.EventEnvelope),
		changed: make(chan struct{}, 1),
	}
}

// Session returns a deep copy of the current model.
func (s *Store) Session() model.ExecutionSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Clone()
}

// Changed signals after every mutation. Notifications coalesce: a slow
// consumer sees at least one signal for any burst of changes.
func (s *Store) Changed() <-chan struct{} { return s.changed }

// ApplySnapshot resyncs the model from a full authoritative snapshot.
// Session-level fields and per-step fields are replaced outright, except
// the event-only fields (durationMs and the event-stamped timestamps),
// which are preserved when the snapshot does not carry them.
func (s *Store) ApplySnapshot(snap model.ExecutionSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := snap.Clone()
	for i := range merged.Steps {
		old := s.session.StepByNumber(merged.Steps[i].StepNumber)
		if old == nil {
			continue
		}
		if merged.Steps[i].DurationMs == 0 {
			merged.Steps[i].DurationMs = old.DurationMs
		}
		if merged.Steps[i].StartedAt.IsZero() {
			merged.Steps[i].StartedAt = old.StartedAt
		}
		if merged.Steps[i].CompletedAt.IsZero() {
			merged.Steps[i].CompletedAt = old.CompletedAt
		}
		merged.Steps[i].ReopenedAt = old.ReopenedAt
	}
	s.session = merged
	s.afterMutation()
}

// ApplyEnvelopes applies a batch in delivery order.
func (s *Store) ApplyEnvelopes(batch []model.EventEnvelope) {
	for _, env := range batch {
		s.ApplyEnvelope(env)
	}
}

// ApplyEnvelope performs a narrow, field-level update keyed by event type.
// An envelope identical to the last one applied for its step is a duplicate
// delivery and is dropped.
func (s *Store) ApplyEnvelope(env model.EventEnvelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.last[env.StepNumber]; ok && prev == env {
		return
	}

	st := s.session.StepByNumber(env.StepNumber)
	if st == nil {
		// Event for a step the snapshot has not shown yet: create a
		// placeholder so the delta is not lost.
		s.session.Steps = append(s.session.Steps, model.Step{
			StepNumber: env.StepNumber,
			Type:       model.StepMain,
		})
		sort.SliceStable(s.session.Steps, func(i, j int) bool {
			return s.session.Steps[i].StepNumber < s.session.Steps[j].StepNumber
		})
		st = s.session.StepByNumber(env.StepNumber)
	}

	switch env.Event {
	case model.EventStepStarted:
		// Marks the step active. Never touches completed/success, so a
		// late-delivered start cannot un-complete a finished step.
		if !env.Timestamp.IsZero() {
			st.StartedAt = env.Timestamp
		}
		if env.Payload.Command != "" {
			st.Command = env.Payload.Command
		}
		if env.Payload.Description != "" {
			st.Description = env.Payload.Description
		}
		s.session.CurrentStep = env.StepNumber
		if s.session.Status == model.StatusPending {
			s.session.Status = model.StatusInProgress
		}

	case model.EventStepOutput:
		st.Output += env.Payload.Output

	case model.EventStepCompleted:
		st.Completed = true
		if env.Payload.Success.Known() {
			st.Success = env.Payload.Success
		} else {
			st.Success = model.TriTrue
		}
		s.finishStep(st, env)

	case model.EventStepFailed:
		st.Completed = true
		st.Success = model.TriFalse
		if env.Payload.Error != "" {
			st.Error = env.Payload.Error
		}
		s.finishStep(st, env)

	default:
		// Unknown event types are ignored; the next snapshot carries
		// whatever state they implied.
		return
	}

	s.last[env.StepNumber] = env
	s.afterMutation()
}

// finishStep applies the fields shared by completion and failure events.
func (s *Store) finishStep(st *model.Step, env model.EventEnvelope) {
	if env.Payload.Output != "" {
		st.Output = env.Payload.Output // final output replaces the live feed
	}
	if env.Payload.DurationMs > 0 {
		st.DurationMs = env.Payload.DurationMs
	}
	if !env.Timestamp.IsZero() {
		st.CompletedAt = env.Timestamp
	}
	if s.session.CurrentStep == st.StepNumber {
		s.session.WaitingForApproval = false
	}
}

// ApplyApproval optimistically records an operator approval decision before
// the server confirms it. The next snapshot overwrites (not doubles) it.
func (s *Store) ApplyApproval(stepNumber int, approved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.session.StepByNumber(stepNumber)
	if st == nil {
		return
	}
	if approved {
		st.Approved = model.TriTrue
	} else {
		st.Approved = model.TriFalse
	}
	if s.session.CurrentStep == stepNumber {
		s.session.WaitingForApproval = false
		if s.session.Status == model.StatusWaitingApproval {
			s.session.Status = model.StatusInProgress
		}
	}
	s.afterMutation()
}

// Reopen is the one legal backward transition: an explicit operator action
// that resets a finished step for re-execution. It is never triggered by a
// snapshot or an envelope. The server is told separately; until it reflects
// the reopen, a later snapshot legitimately restores the old state.
func (s *Store) Reopen(stepNumber int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.session.StepByNumber(stepNumber)
	if st == nil {
		return
	}
	st.Completed = false
	st.Success = model.TriUnknown
	st.CompletedAt = time.Time{}
	st.DurationMs = 0
	st.Error = ""
	st.ReopenedAt = time.Now()
	// Forget the step's duplicate fingerprint so the re-execution's
	// events apply even if byte-identical to the first run's.
	delete(s.last, stepNumber)
	s.afterMutation()
}

// afterMutation recomputes the feedback edge trigger and signals consumers.
// Callers hold s.mu.
func (s *Store) afterMutation() {
	if allCompleted(s.session) {
		if !s.atHundred {
			s.atHundred = true
			s.feedbackPending = true
		}
	} else {
		s.atHundred = false
	}

	select {
	case s.changed <- struct{}{}:
	default:
	}
}
