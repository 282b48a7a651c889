// Package model defines the canonical in-memory shape of a remediation
// execution session and the normalization rules that turn heterogeneous
// executor payloads into it.
package model

import "time"

// SessionStatus is the lifecycle state of an execution session.
type SessionStatus string

const (
	StatusPending         SessionStatus = "pending"
	StatusInProgress      SessionStatus = "in_progress"
	StatusWaitingApproval SessionStatus = "waiting_approval"
	StatusCompleted       SessionStatus = "completed"
	StatusFailed          SessionStatus = "failed"
	StatusAbandoned       SessionStatus = "abandoned"
)

// Terminal reports whether the session can no longer change.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusAbandoned
}

// StepType classifies a step within a runbook.
type StepType string

const (
	StepPrecheck  StepType = "precheck"
	StepMain      StepType = "main"
	StepPostcheck StepType = "postcheck"
)

// Tri is a tri-state boolean. The executor reports success and approval as
// true/false/absent; absent must never be read as either value.
type Tri int

const (
	TriUnknown Tri = iota
	TriTrue
	TriFalse
)

// True reports whether the value is known and true.
func (t Tri) True() bool { return t == TriTrue }

// False reports whether the value is known and false.
func (t Tri) False() bool { return t == TriFalse }

// Known reports whether the value has been resolved either way.
func (t Tri) Known() bool { return t != TriUnknown }

func (t Tri) String() string {
	switch t {
	case TriTrue:
		return "true"
	case TriFalse:
		return "false"
	}
	return "unknown"
}

// ExecutionSession is one end-to-end execution attempt of a runbook against
// a described issue. Steps are ordered by StepNumber ascending.
type ExecutionSession struct {
	ID               string
	RunbookID        string
	RunbookTitle     string
	IssueDescription string
	Status           SessionStatus

	// CurrentStep is the 1-based step number the executor is acting on,
	// or 0 when no step is active.
	CurrentStep        int
	WaitingForApproval bool

	StartedAt   time.Time // zero until the executor stamps it
	CompletedAt time.Time // zero until the session reaches a terminal state

	// TotalDurationMinutes is only meaningful once Status is terminal.
	TotalDurationMinutes float64

	Steps []Step
}

// StepByNumber returns the step with the given number, or nil.
func (s *ExecutionSession) StepByNumber(n int) *Step {
	for i := range s.Steps {
		if s.Steps[i].StepNumber == n {
			return &s.Steps[i]
		}
	}
	return nil
}

// Clone returns a deep copy. Consumers receive copies so that reconciler
// internals are never aliased by UI code.
func (s ExecutionSession) Clone() ExecutionSession {
	out := s
	out.Steps = make([]Step, len(s.Steps))
	copy(out.Steps, s.Steps)
	return out
}

// Step is one unit of work within a session.
type Step struct {
	StepNumber int // 1-based, unique, immutable
	Type       StepType

	Command         string
	Description     string
	RollbackCommand string
	Severity        string // free-form tag, display policy only

	// Completed is terminal for the step: no further execution occurs.
	// Success is only meaningful once Completed is true.
	Completed bool
	Success   Tri

	Output string
	Notes  string
	Error  string

	RequiresApproval bool
	Approved         Tri // meaningful only when RequiresApproval

	StartedAt   time.Time
	CompletedAt time.Time

	// DurationMs is populated only by streamed completion/failure events,
	// never by snapshots.
	DurationMs int64

	// ReopenedAt records the most recent local reopen. Display metadata
	// only: it never participates in merging.
	ReopenedAt time.Time
}

// Actionable reports whether operator completion controls (mark successful /
// mark failed) may act on this step. A step gated on approval is never
// actionable until the approval resolves either way.
func (st Step) Actionable() bool {
	return !(st.RequiresApproval && st.Approved == TriUnknown)
}

// Running reports whether the step has started but not completed.
func (st Step) Running() bool {
	return !st.StartedAt.IsZero() && !st.Completed
}

// EventType identifies a streamed step-level state change.
type EventType string

const (
	EventStepStarted   EventType = "stepStarted"
	EventStepOutput    EventType = "stepOutput"
	EventStepCompleted EventType = "stepCompleted"
	EventStepFailed    EventType = "stepFailed"
)

// EventEnvelope is one incremental event pushed over the session WebSocket.
// The wire contract carries no sequence number; envelopes must be applied in
// delivery order.
type EventEnvelope struct {
	Event      EventType
	StepNumber int
	Timestamp  time.Time
	Payload    EventPayload
}

// EventPayload is the union of fields the executor attaches to any event
// type. Fields not relevant to the event type are left at their zero value.
type EventPayload struct {
	Command     string
	Description string
	Output      string
	Error       string
	Success     Tri
	DurationMs  int64
}

// Feedback is the end-of-session record the operator submits.
type Feedback struct {
	WasSuccessful bool   `json:"wasSuccessful"`
	IssueResolved bool   `json:"issueResolved"`
	Rating        int    `json:"rating"` // 1-5
	FeedbackText  string `json:"feedbackText"`
	Suggestions   string `json:"suggestions"`
}

// PendingApproval is one entry in the cross-session approval queue.
type PendingApproval struct {
	SessionID    string
	StepNumber   int
	Command      string
	Description  string
	RunbookTitle string
	Severity     string
}
