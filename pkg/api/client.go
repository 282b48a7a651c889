// Package api provides the REST client for the remediation executor.
//
// The executor owns runbook authoring, credentials, and command execution;
// this client only reads session state and submits operator decisions.
// All durable state lives behind this boundary.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/remex/pkg/model"
)

// Client is a lightweight executor API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the executor at baseURL (e.g. "http://ops-exec:8080").
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateSessionRequest launches a runbook against an issue.
type CreateSessionRequest struct {
	RunbookID        string            `json:"runbookId"`
	IssueDescription string            `json:"issueDescription"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// StepUpdate carries an operator-issued step mutation. Nil optional fields
// are omitted from the PATCH body and left unchanged server-side.
type StepUpdate struct {
	StepNumber int            `json:"stepNumber"`
	StepType   model.StepType `json:"stepType"`
	Completed  bool           `json:"completed"`
	Success    *bool          `json:"success,omitempty"`
	Output     *string        `json:"output,omitempty"`
	Notes      *string        `json:"notes,omitempty"`
	Approved   *bool          `json:"approved,omitempty"`
}

// CreateSession asks the executor to start a session. An Idempotency-Key
// header guards against a retried launch creating two sessions.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (model.ExecutionSession, error) {
	body, err := c.do(ctx, http.MethodPost, "/sessions", "", req, map[string]string{
		"Idempotency-Key": uuid.NewString(),
	})
	if err != nil {
		return model.ExecutionSession{}, err
	}
	s, err := model.DecodeSession(body)
	if err != nil {
		return model.ExecutionSession{}, fmt.Errorf("create session: parse response: %w", err)
	}
	return s, nil
}

// GetSession fetches a full authoritative snapshot.
func (c *Client) GetSession(ctx context.Context, id string) (model.ExecutionSession, error) {
	body, err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), id, nil, nil)
	if err != nil {
		return model.ExecutionSession{}, err
	}
	s, err := model.DecodeSession(body)
	if err != nil {
		return model.ExecutionSession{}, fmt.Errorf("get session %s: parse snapshot: %w", id, err)
	}
	return s, nil
}

// ListSessions fetches snapshot summaries for the dashboard.
func (c *Client) ListSessions(ctx context.Context) ([]model.ExecutionSession, error) {
	body, err := c.do(ctx, http.MethodGet, "/sessions", "", nil, nil)
	if err != nil {
		return nil, err
	}
	var raw []map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("list sessions: parse response: %w", err)
	}
	out := make([]model.ExecutionSession, 0, len(raw))
	for _, r := range raw {
		out = append(out, model.NormalizeSession(r))
	}
	return out, nil
}

// UpdateStep submits an operator step mutation (output/notes/approval/manual
// success override).
func (c *Client) UpdateStep(ctx context.Context, sessionID string, upd StepUpdate) error {
	_, err := c.do(ctx, http.MethodPatch, "/sessions/"+url.PathEscape(sessionID)+"/steps", sessionID, upd, nil)
	return err
}

// CompleteSession submits the end-of-session feedback record.
func (c *Client) CompleteSession(ctx context.Context, sessionID string, fb model.Feedback) error {
	_, err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/complete", sessionID, fb, nil)
	return err
}

// PendingApprovals lists approval-gated steps across all sessions.
func (c *Client) PendingApprovals(ctx context.Context) ([]model.PendingApproval, error) {
	body, err := c.do(ctx, http.MethodGet, "/pending-approvals", "", nil, nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		SessionID    string `json:"sessionId"`
		StepNumber   int    `json:"stepNumber"`
		Command      string `json:"command"`
		Description  string `json:"description"`
		RunbookTitle string `json:"runbookTitle"`
		Severity     string `json:"severity"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("pending approvals: parse response: %w", err)
	}
	out := make([]model.PendingApproval, 0, len(raw))
	for _, r := range raw {
		out = append(out, model.PendingApproval(r))
	}
	return out, nil
}

// ApproveStep submits the operator decision for a gated step.
func (c *Client) ApproveStep(ctx context.Context, sessionID string, stepNumber int, approve bool, notes string) error {
	path := fmt.Sprintf("/sessions/%s/steps/%d/approve", url.PathEscape(sessionID), stepNumber)
	_, err := c.do(ctx, http.MethodPost, path, sessionID, map[string]any{
		"approve": approve,
		"notes":   notes,
	}, nil)
	return err
}

// do performs one request and maps failures onto the error taxonomy.
// sessionID is only used to build FatalSessionError for 404/410.
func (c *Client) do(ctx context.Context, method, path, sessionID string, payload any, headers map[string]string) ([]byte, error) {
	op := method + " " + path

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal body: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &FatalSessionError{SessionID: sessionID}
	case resp.StatusCode == http.StatusConflict:
		return nil, &ConflictError{Op: op, Message: errorMessage(body)}
	default:
		return nil, &TransportError{Op: op, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 300))}
	}
}

// errorMessage extracts {"error": "..."} bodies, falling back to raw text.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return truncate(body, 300)
}

func truncate(b []byte, max int) string {
	s := string(b)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
