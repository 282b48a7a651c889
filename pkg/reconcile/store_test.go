package reconcile

import (
	"reflect"
	"testing"
	"time"

	"github.com/ormasoftchile/remex/pkg/model"
)

var t0 = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func threeStepSnapshot() model.ExecutionSession {
	return model.ExecutionSession{
		ID:          "sess-1",
		RunbookID:   "rb-disk",
		Status:      model.StatusInProgress,
		CurrentStep: 2,
		StartedAt:   t0,
		Steps: []model.Step{
			{StepNumber: 1, Type: model.StepPrecheck, Command: "df -h", Completed: true, Success: model.TriTrue},
			{StepNumber: 2, Type: model.StepMain, Command: "rm -rf /var/log/old"},
			{StepNumber: 3, Type: model.StepPostcheck, Command: "df -h"},
		},
	}
}

func started(n int, ts time.Time) model.EventEnvelope {
	return model.EventEnvelope{Event: model.EventStepStarted, StepNumber: n, Timestamp: ts}
}

func output(n int, text string) model.EventEnvelope {
	return model.EventEnvelope{Event: model.EventStepOutput, StepNumber: n,
		Payload: model.EventPayload{Output: text}}
}

func completed(n int, ts time.Time, dur int64) model.EventEnvelope {
	return model.EventEnvelope{Event: model.EventStepCompleted, StepNumber: n, Timestamp: ts,
		Payload: model.EventPayload{Success: model.TriTrue, DurationMs: dur}}
}

func failed(n int, ts time.Time, msg string) model.EventEnvelope {
	return model.EventEnvelope{Event: model.EventStepFailed, StepNumber: n, Timestamp: ts,
		Payload: model.EventPayload{Error: msg}}
}

// stepOf reads one step out of the store's current snapshot.
func stepOf(s *Store, n int) *model.Step {
	sess := s.Session()
	return sess.StepByNumber(n)
}

func TestApplySnapshotIdempotent(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(threeStepSnapshot())
	once := s.Session()
	s.ApplySnapshot(threeStepSnapshot())
	twice := s.Session()
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second apply changed the model:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestApplyEnvelopeIdempotent(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(threeStepSnapshot())

	// stepOutput appends, so duplicate delivery is the dangerous case.
	env := output(2, "cleared 2.1G\n")
	s.ApplyEnvelope(env)
	once := s.Session()
	s.ApplyEnvelope(env)
	twice := s.Session()

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("replayed envelope changed the model:\nonce:  %+v\ntwice: %+v", once, twice)
	}
	if got := once.StepByNumber(2).Output; got != "cleared 2.1G\n" {
		t.Errorf("output = %q", got)
	}
}

func TestDuplicateDeliveryCommutes(t *testing.T) {
	env := completed(2, t0.Add(time.Minute), 420)
	snap := threeStepSnapshot()

	a := NewStore()
	a.ApplySnapshot(snap)
	a.ApplyEnvelope(env)
	a.ApplySnapshot(snap)
	a.ApplyEnvelope(env) // replay after resync

	b := NewStore()
	b.ApplySnapshot(snap)
	b.ApplyEnvelope(env)
	b.ApplySnapshot(snap)

	if !reflect.DeepEqual(a.Session(), b.Session()) {
		t.Errorf("E,S,E != E,S:\nE,S,E: %+v\nE,S:   %+v", a.Session(), b.Session())
	}
}

func TestMonotonicCompletion(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(threeStepSnapshot())
	s.ApplyEnvelope(completed(2, t0.Add(time.Minute), 420))

	// A late-delivered start for the same step must not un-complete it.
	s.ApplyEnvelope(started(2, t0.Add(2*time.Minute)))

	st := stepOf(s, 2)
	if !st.Completed || st.Success != model.TriTrue {
		t.Errorf("step regressed after late stepStarted: completed=%v success=%v",
			st.Completed, st.Success)
	}
}

func TestApprovalGate(t *testing.T) {
	snap := threeStepSnapshot()
	snap.Steps[1].RequiresApproval = true
	snap.Status = model.StatusWaitingApproval
	snap.WaitingForApproval = true

	s := NewStore()
	s.ApplySnapshot(snap)
	s.ApplyEnvelope(started(2, t0))

	if s.StepActionable(2) {
		t.Fatal("gated step actionable before approval")
	}
	if !s.StepActionable(1) || !s.StepActionable(3) {
		t.Error("ungated steps should be actionable")
	}

	// Operator approves; the decision lands optimistically.
	s.ApplyApproval(2, true)
	if !s.StepActionable(2) {
		t.Fatal("step not actionable after approve")
	}
	if sess := s.Session(); sess.WaitingForApproval || sess.Status != model.StatusInProgress {
		t.Errorf("session = %s waiting=%v after approve", sess.Status, sess.WaitingForApproval)
	}

	// The confirming snapshot overwrites, not doubles, the optimistic state.
	confirm := threeStepSnapshot()
	confirm.Steps[1].RequiresApproval = true
	confirm.Steps[1].Approved = model.TriTrue
	s.ApplySnapshot(confirm)
	if !s.StepActionable(2) {
		t.Error("step lost actionability after confirming snapshot")
	}
}

func TestChangesRequestedStaysGatedForCompletion(t *testing.T) {
	snap := threeStepSnapshot()
	snap.Steps[1].RequiresApproval = true

	s := NewStore()
	s.ApplySnapshot(snap)
	s.ApplyApproval(2, false)

	st := stepOf(s, 2)
	if st.Approved != model.TriFalse {
		t.Errorf("Approved = %v", st.Approved)
	}
	// A resolved-negative approval is still actionable: the operator may
	// mark the step failed/skipped. Only unknown blocks.
	if !s.StepActionable(2) {
		t.Error("resolved approval should unblock completion controls")
	}
}

func TestProgressBoundary(t *testing.T) {
	s := NewStore()
	if p := s.ProgressPercent(); p != 0 {
		t.Errorf("empty store progress = %v, want 0", p)
	}
	s.ApplySnapshot(model.ExecutionSession{ID: "sess-empty"})
	if p := s.ProgressPercent(); p != 0 {
		t.Errorf("empty step list progress = %v, want 0", p)
	}
}

func TestScenarioA(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(threeStepSnapshot())
	s.ApplyEnvelopes([]model.EventEnvelope{
		started(2, t0.Add(time.Minute)),
		output(2, "ok"),
		completed(2, t0.Add(2*time.Minute), 900),
	})

	sess := s.Session()
	for _, n := range []int{1, 2} {
		st := sess.StepByNumber(n)
		if !st.Completed || st.Success != model.TriTrue {
			t.Errorf("step %d: completed=%v success=%v", n, st.Completed, st.Success)
		}
	}
	if st := sess.StepByNumber(3); st.Completed || st.Success != model.TriUnknown || st.Output != "" {
		t.Errorf("step 3 touched: %+v", st)
	}
	if p := s.ProgressPercent(); p != 66.67 {
		t.Errorf("progress = %v, want 66.67", p)
	}
}

func TestScenarioCPollingOnlyResync(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(threeStepSnapshot())

	// Stream delivered some deltas, then died.
	s.ApplyEnvelope(started(2, t0.Add(time.Minute)))
	s.ApplyEnvelope(output(2, "partial"))

	// Next poll carries the full authoritative state.
	snap := threeStepSnapshot()
	snap.Steps[1].Completed = true
	snap.Steps[1].Success = model.TriTrue
	snap.Steps[1].Output = "full final output"
	snap.CurrentStep = 3
	s.ApplySnapshot(snap)

	st := stepOf(s, 2)
	if !st.Completed || st.Success != model.TriTrue || st.Output != "full final output" {
		t.Errorf("snapshot did not fully refresh step 2: %+v", st)
	}
	if s.Session().CurrentStep != 3 {
		t.Errorf("CurrentStep = %d", s.Session().CurrentStep)
	}
}

func TestScenarioDReopen(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(threeStepSnapshot())
	s.ApplyEnvelope(failed(2, t0.Add(time.Minute), "exit 1"))

	s.Reopen(2)
	st := stepOf(s, 2)
	if st.Completed || st.Success != model.TriUnknown || st.Error != "" || st.DurationMs != 0 {
		t.Errorf("reopen did not reset step: %+v", st)
	}

	// Re-execution events apply even when byte-identical to the first run.
	s.ApplyEnvelope(failed(2, t0.Add(time.Minute), "exit 1"))
	if st := stepOf(s, 2); !st.Completed || st.Success != model.TriFalse {
		t.Errorf("post-reopen event did not apply: %+v", st)
	}

	// A stale snapshot carrying the old finished state legitimately
	// restores it; reopen is authoritative only once the server reflects
	// it.
	s.Reopen(2)
	stale := threeStepSnapshot()
	stale.Steps[1].Completed = true
	stale.Steps[1].Success = model.TriFalse
	s.ApplySnapshot(stale)
	if st := stepOf(s, 2); !st.Completed {
		t.Errorf("snapshot-wins rule violated: %+v", st)
	}
}

func TestSnapshotPreservesEventOnlyFields(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(threeStepSnapshot())
	s.ApplyEnvelope(completed(2, t0.Add(time.Minute), 1234))

	// Snapshots never carry durationMs or the event-stamped times.
	s.ApplySnapshot(threeStepSnapshot())

	st := stepOf(s, 2)
	if st.DurationMs != 1234 {
		t.Errorf("DurationMs = %d, want 1234", st.DurationMs)
	}
	if st.CompletedAt.IsZero() {
		t.Error("CompletedAt lost on resync")
	}
	// But completion itself is snapshot-owned and was replaced.
	if st.Completed {
		t.Error("stale snapshot should have cleared completed (snapshot wins)")
	}
}

func TestFinalOutputReplacesLiveFeed(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(threeStepSnapshot())
	s.ApplyEnvelope(output(2, "chunk1\n"))
	s.ApplyEnvelope(output(2, "chunk2\n"))

	env := completed(2, t0.Add(time.Minute), 0)
	env.Payload.Output = "final transcript"
	s.ApplyEnvelope(env)

	if got := stepOf(s, 2).Output; got != "final transcript" {
		t.Errorf("output = %q", got)
	}
}

func TestEnvelopeForUnknownStepCreatesPlaceholder(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(threeStepSnapshot())
	s.ApplyEnvelope(started(7, t0))

	sess := s.Session()
	st := sess.StepByNumber(7)
	if st == nil {
		t.Fatal("placeholder step not created")
	}
	if st.Type != model.StepMain {
		t.Errorf("Type = %q, want main", st.Type)
	}
	last := sess.Steps[len(sess.Steps)-1]
	if last.StepNumber != 7 {
		t.Errorf("steps not kept ordered: last = %d", last.StepNumber)
	}
}

func TestFeedbackEdgeTrigger(t *testing.T) {
	s := NewStore()
	snap := threeStepSnapshot()
	s.ApplySnapshot(snap)

	s.ApplyEnvelope(completed(2, t0.Add(time.Minute), 0))
	if s.TakeFeedbackReady() {
		t.Fatal("fired below 100%")
	}

	s.ApplyEnvelope(completed(3, t0.Add(2*time.Minute), 0))
	if !s.ReadyForFeedback() {
		t.Fatal("not at 100%")
	}
	if !s.TakeFeedbackReady() {
		t.Fatal("did not fire on crossing into 100%")
	}
	if s.TakeFeedbackReady() {
		t.Fatal("fired twice for one crossing")
	}

	// Staying at 100% across resyncs does not re-fire.
	done := threeStepSnapshot()
	for i := range done.Steps {
		done.Steps[i].Completed = true
	}
	s.ApplySnapshot(done)
	if s.TakeFeedbackReady() {
		t.Fatal("re-fired while holding at 100%")
	}

	// Dropping below 100% rearms the trigger.
	s.Reopen(3)
	s.ApplyEnvelope(completed(3, t0.Add(3*time.Minute), 0))
	if !s.TakeFeedbackReady() {
		t.Fatal("did not rearm after reopen")
	}
}

func TestFeedbackWaitsForLastStepOfLongSession(t *testing.T) {
	// With enough steps, the two-decimal display percentage rounds to
	// 100.00 while one step is still outstanding. Readiness counts steps.
	const total = 30000
	snap := model.ExecutionSession{ID: "sess-long", Status: model.StatusInProgress}
	for n := 1; n <= total; n++ {
		snap.Steps = append(snap.Steps, model.Step{
			StepNumber: n, Type: model.StepMain, Completed: n < total,
		})
	}

	s := NewStore()
	s.ApplySnapshot(snap)

	if p := s.ProgressPercent(); p != 100 {
		t.Fatalf("ProgressPercent = %v, want rounded 100", p)
	}
	if s.ReadyForFeedback() {
		t.Fatal("ready with a step outstanding")
	}
	if s.TakeFeedbackReady() {
		t.Fatal("fired with a step outstanding")
	}

	s.ApplyEnvelope(completed(total, t0, 0))
	if !s.ReadyForFeedback() {
		t.Fatal("not ready after the last step completed")
	}
	if !s.TakeFeedbackReady() {
		t.Fatal("did not fire after the last step completed")
	}
}

func TestChangedCoalesces(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(threeStepSnapshot())
	s.ApplyEnvelope(output(2, "a"))
	s.ApplyEnvelope(output(2, "b"))

	select {
	case <-s.Changed():
	default:
		t.Fatal("no change signal after mutations")
	}
	select {
	case <-s.Changed():
		t.Fatal("signals did not coalesce")
	default:
	}
}
