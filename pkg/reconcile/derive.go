package reconcile

import (
	"math"

	"github.com/ormasoftchile/remex/pkg/model"
)

// ProgressPercent is the share of completed steps, rounded to two decimals.
// An empty step list is 0, never NaN.
func (s *Store) ProgressPercent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return progress(s.session)
}

// Progress computes the completion percentage for a session value outside
// any store, e.g. for dashboard rows built from list snapshots.
func Progress(sess model.ExecutionSession) float64 {
	return progress(sess)
}

func progress(sess model.ExecutionSession) float64 {
	if len(sess.Steps) == 0 {
		return 0
	}
	p := float64(completedSteps(sess)) / float64(len(sess.Steps)) * 100
	return math.Round(p*100) / 100
}

func completedSteps(sess model.ExecutionSession) int {
	done := 0
	for _, st := range sess.Steps {
		if st.Completed {
			done++
		}
	}
	return done
}

// allCompleted is the feedback-readiness predicate. It counts steps rather
// than comparing the display percentage, which is rounded and reaches 100.00
// before the last step of a very long session finishes.
func allCompleted(sess model.ExecutionSession) bool {
	return len(sess.Steps) > 0 && completedSteps(sess) == len(sess.Steps)
}

// ReadyForFeedback reports whether every step has completed.
func (s *Store) ReadyForFeedback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return allCompleted(s.session)
}

// TakeFeedbackReady consumes the edge-triggered feedback signal. It returns
// true exactly once per crossing into 100% progress, so the operator is
// prompted a single time rather than on every render. If progress later
// drops below 100 (a reopened step) and completes again, the signal rearms.
func (s *Store) TakeFeedbackReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.feedbackPending
	s.feedbackPending = false
	return v
}

// StepActionable reports whether operator completion controls may act on
// the step. A step gated on an unresolved approval is never actionable,
// whatever the session-level status says. Unknown steps are not actionable.
func (s *Store) StepActionable(stepNumber int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.session.StepByNumber(stepNumber)
	return st != nil && st.Actionable()
}
