package model

import (
	"testing"
	"time"
)

// TestNormalizeStepStringBooleans verifies that boolean fields arriving as
// the strings "true"/"false" decode the same as real JSON booleans.
func TestNormalizeStepStringBooleans(t *testing.T) {
	cases := []struct {
		name      string
		raw       map[string]any
		completed bool
		success   Tri
		approval  bool
	}{
		{
			name:      "real booleans",
			raw:       map[string]any{"completed": true, "success": false, "requiresApproval": true},
			completed: true, success: TriFalse, approval: true,
		},
		{
			name:      "string booleans",
			raw:       map[string]any{"completed": "true", "success": "false", "requiresApproval": "true"},
			completed: true, success: TriFalse, approval: true,
		},
		{
			name:      "mixed case strings",
			raw:       map[string]any{"completed": "True", "success": "TRUE"},
			completed: true, success: TriTrue,
		},
		{
			name:      "absent fields",
			raw:       map[string]any{},
			completed: false, success: TriUnknown, approval: false,
		},
		{
			name:      "garbage values degrade to defaults",
			raw:       map[string]any{"completed": 17, "success": "maybe", "requiresApproval": nil},
			completed: false, success: TriUnknown, approval: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := NormalizeStep(tc.raw)
			if st.Completed != tc.completed {
				t.Errorf("Completed = %v, want %v", st.Completed, tc.completed)
			}
			if st.Success != tc.success {
				t.Errorf("Success = %v, want %v", st.Success, tc.success)
			}
			if st.RequiresApproval != tc.approval {
				t.Errorf("RequiresApproval = %v, want %v", st.RequiresApproval, tc.approval)
			}
		})
	}
}

// TestNormalizeStepUnknownType verifies unknown step types render as main.
func TestNormalizeStepUnknownType(t *testing.T) {
	for raw, want := range map[string]StepType{
		"precheck":    StepPrecheck,
		"main":        StepMain,
		"postcheck":   StepPostcheck,
		"chaos-probe": StepMain,
		"":            StepMain,
	} {
		st := NormalizeStep(map[string]any{"type": raw})
		if st.Type != want {
			t.Errorf("type %q normalized to %q, want %q", raw, st.Type, want)
		}
	}
}

func TestNormalizeSessionOrdersSteps(t *testing.T) {
	s := NormalizeSession(map[string]any{
		"id":     "s-1",
		"status": "in_progress",
		"steps": []any{
			map[string]any{"stepNumber": float64(3)},
			map[string]any{"stepNumber": float64(1)},
			map[string]any{"stepNumber": float64(2)},
		},
	})
	if len(s.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(s.Steps))
	}
	for i, st := range s.Steps {
		if st.StepNumber != i+1 {
			t.Errorf("steps[%d].StepNumber = %d, want %d", i, st.StepNumber, i+1)
		}
	}
}

func TestNormalizeSessionUnknownStatus(t *testing.T) {
	s := NormalizeSession(map[string]any{"status": "exploded"})
	if s.Status != StatusPending {
		t.Errorf("unknown status normalized to %q, want pending", s.Status)
	}
}

func TestDecodeSession(t *testing.T) {
	data := []byte(`{
		"id": "sess-9",
		"runbookId": "rb-1",
		"runbookTitle": "Restart frontend",
		"status": "waiting_approval",
		"currentStep": 2,
		"waitingForApproval": "true",
		"startedAt": "2026-03-01T10:00:00Z",
		"steps": [
			{"stepNumber": 1, "type": "precheck", "completed": true, "success": true},
			{"stepNumber": 2, "type": "main", "requiresApproval": "true", "command": "kubectl rollout restart deploy/fe"}
		]
	}`)
	s, err := DecodeSession(data)
	if err != nil {
		t.Fatalf("DecodeSession: %v", err)
	}
	if s.Status != StatusWaitingApproval {
		t.Errorf("Status = %q", s.Status)
	}
	if !s.WaitingForApproval {
		t.Error("WaitingForApproval should be true")
	}
	if s.CurrentStep != 2 {
		t.Errorf("CurrentStep = %d, want 2", s.CurrentStep)
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !s.StartedAt.Equal(want) {
		t.Errorf("StartedAt = %v, want %v", s.StartedAt, want)
	}
	step2 := s.StepByNumber(2)
	if step2 == nil {
		t.Fatal("step 2 missing")
	}
	if !step2.RequiresApproval || step2.Approved != TriUnknown {
		t.Errorf("step 2 approval state = %v/%v", step2.RequiresApproval, step2.Approved)
	}
	if step2.Actionable() {
		t.Error("gated step with unresolved approval must not be actionable")
	}
}

func TestDecodeEventBatchPreservesOrder(t *testing.T) {
	data := []byte(`{"events": [
		{"event": "stepStarted", "stepNumber": 2, "timestamp": "2026-03-01T10:01:00Z"},
		{"event": "stepOutput", "stepNumber": 2, "payload": {"output": "ok\n"}},
		{"event": "stepCompleted", "stepNumber": 2, "payload": {"success": "true", "durationMs": 950}}
	]}`)
	envs, err := DecodeEventBatch(data)
	if err != nil {
		t.Fatalf("DecodeEventBatch: %v", err)
	}
	if len(envs) != 3 {
		t.Fatalf("got %d envelopes, want 3", len(envs))
	}
	wantOrder := []EventType{EventStepStarted, EventStepOutput, EventStepCompleted}
	for i, ev := range envs {
		if ev.Event != wantOrder[i] {
			t.Errorf("envelope %d = %q, want %q", i, ev.Event, wantOrder[i])
		}
	}
	if envs[2].Payload.Success != TriTrue || envs[2].Payload.DurationMs != 950 {
		t.Errorf("completion payload = %+v", envs[2].Payload)
	}
}

// TestNormalizeTotal checks that normalization never panics on hostile input.
func TestNormalizeTotal(t *testing.T) {
	hostile := []map[string]any{
		nil,
		{"steps": "not-a-list"},
		{"steps": []any{"not-a-map", 42, nil}},
		{"currentStep": "NaN", "totalDurationMinutes": "xx"},
		{"startedAt": 12345.0, "completedAt": []any{}},
	}
	for i, raw := range hostile {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("input %d panicked: %v", i, r)
				}
			}()
			NormalizeSession(raw)
		}()
	}
}
