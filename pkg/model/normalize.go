package model

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"
)

// Normalization turns raw executor JSON into the canonical model. The
// executor's wire format is loose: booleans arrive as JSON booleans or as the
// strings "true"/"false", optional fields may be absent or null, and numbers
// may arrive as float64 or as numeric strings. Normalization is pure and
// total — malformed values degrade to the safest default (unknown, empty,
// zero) instead of failing the session view.

// NormalizeSession converts a raw decoded session object.
func NormalizeSession(raw map[string]any) ExecutionSession {
	s := ExecutionSession{
		ID:                   asString(raw["id"]),
		RunbookID:            asString(raw["runbookId"]),
		RunbookTitle:         asString(raw["runbookTitle"]),
		IssueDescription:     asString(raw["issueDescription"]),
		Status:               normalizeStatus(asString(raw["status"])),
		CurrentStep:          asInt(raw["currentStep"]),
		WaitingForApproval:   asBool(raw["waitingForApproval"]),
		StartedAt:            asTime(raw["startedAt"]),
		CompletedAt:          asTime(raw["completedAt"]),
		TotalDurationMinutes: asFloat(raw["totalDurationMinutes"]),
	}

	if steps, ok := raw["steps"].([]any); ok {
		for _, el := range steps {
			if m, ok := el.(map[string]any); ok {
				s.Steps = append(s.Steps, NormalizeStep(m))
			}
		}
	}
	sort.SliceStable(s.Steps, func(i, j int) bool {
		return s.Steps[i].StepNumber < s.Steps[j].StepNumber
	})
	return s
}

// NormalizeStep converts a raw decoded step object.
func NormalizeStep(raw map[string]any) Step {
	return Step{
		StepNumber:       asInt(raw["stepNumber"]),
		Type:             normalizeStepType(asString(raw["type"])),
		Command:          asString(raw["command"]),
		Description:      asString(raw["description"]),
		RollbackCommand:  asString(raw["rollbackCommand"]),
		Severity:         asString(raw["severity"]),
		Completed:        asBool(raw["completed"]),
		Success:          asTri(raw["success"]),
		Output:           asString(raw["output"]),
		Notes:            asString(raw["notes"]),
		Error:            asString(raw["error"]),
		RequiresApproval: asBool(raw["requiresApproval"]),
		Approved:         asTri(raw["approved"]),
		StartedAt:        asTime(raw["startedAt"]),
		CompletedAt:      asTime(raw["completedAt"]),
		DurationMs:       int64(asFloat(raw["durationMs"])),
	}
}

// NormalizeEnvelope converts a raw decoded event envelope.
func NormalizeEnvelope(raw map[string]any) EventEnvelope {
	env := EventEnvelope{
		Event:      EventType(asString(raw["event"])),
		StepNumber: asInt(raw["stepNumber"]),
		Timestamp:  asTime(raw["timestamp"]),
	}
	if p, ok := raw["payload"].(map[string]any); ok {
		env.Payload = EventPayload{
			Command:     asString(p["command"]),
			Description: asString(p["description"]),
			Output:      asString(p["output"]),
			Error:       asString(p["error"]),
			Success:     asTri(p["success"]),
			DurationMs:  int64(asFloat(p["durationMs"])),
		}
	}
	return env
}

// DecodeSession parses a full session snapshot from JSON.
func DecodeSession(data []byte) (ExecutionSession, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return ExecutionSession{}, &ValidationError{What: "session", Err: err}
	}
	return NormalizeSession(raw), nil
}

// DecodeEventBatch parses one WebSocket message of the form
// {"events": [envelope, ...]}. Envelope order is preserved: the reconciler
// applies them in array order.
func DecodeEventBatch(data []byte) ([]EventEnvelope, error) {
	var raw struct {
		Events []map[string]any `json:"events"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{What: "event batch", Err: err}
	}
	out := make([]EventEnvelope, 0, len(raw.Events))
	for _, e := range raw.Events {
		out = append(out, NormalizeEnvelope(e))
	}
	return out, nil
}

func normalizeStatus(s string) SessionStatus {
	switch SessionStatus(s) {
	case StatusPending, StatusInProgress, StatusWaitingApproval,
		StatusCompleted, StatusFailed, StatusAbandoned:
		return SessionStatus(s)
	}
	return StatusPending
}

// normalizeStepType defaults unrecognized types to main so unknown future
// step kinds still render as ordinary steps.
func normalizeStepType(s string) StepType {
	switch StepType(s) {
	case StepPrecheck, StepMain, StepPostcheck:
		return StepType(s)
	}
	return StepMain
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asBool tolerates JSON booleans and the string encodings "true"/"false".
// Anything else is false.
func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	}
	return false
}

// asTri tolerates JSON booleans and string encodings; absent, null, or
// unparseable values stay unknown.
func asTri(v any) Tri {
	switch b := v.(type) {
	case bool:
		if b {
			return TriTrue
		}
		return TriFalse
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return TriTrue
		case "false":
			return TriFalse
		}
	}
	return TriUnknown
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case string:
		var f float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(n)), &f); err == nil {
			return f
		}
	}
	return 0
}

func asInt(v any) int {
	return int(asFloat(v))
}

// asTime accepts RFC 3339 strings or Unix epoch milliseconds.
func asTime(v any) time.Time {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	case float64:
		if t > 0 {
			return time.UnixMilli(int64(t)).UTC()
		}
	}
	return time.Time{}
}
