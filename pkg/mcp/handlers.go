// Package mcp exposes the executor session API to AI agents as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/remex/pkg/api"
	"github.com/ormasoftchile/remex/pkg/model"
	"github.com/ormasoftchile/remex/pkg/reconcile"
)

// Handlers binds the MCP tools to an executor API client.
type Handlers struct {
	Client *api.Client
}

// HandleSessions implements the remex/sessions MCP tool.
func (h *Handlers) HandleSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	statusFilter, _ := args["status"].(string)

	sessions, err := h.Client.ListSessions(ctx)
	if err != nil {
		return errorResult(apiError(err)), nil
	}

	rows := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		if statusFilter != "" && string(s.Status) != statusFilter {
			continue
		}
		rows = append(rows, map[string]any{
			"id":              s.ID,
			"runbookTitle":    s.RunbookTitle,
			"status":          string(s.Status),
			"progressPercent": reconcile.Progress(s),
			"currentStep":     s.CurrentStep,
			"waitingApproval": s.WaitingForApproval,
		})
	}
	return jsonResult(rows), nil
}

// HandleSession implements the remex/session MCP tool.
func (h *Handlers) HandleSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, _ := args["id"].(string)
	if id == "" {
		return errorResult("id argument is required"), nil
	}

	sess, err := h.Client.GetSession(ctx, id)
	if err != nil {
		return errorResult(apiError(err)), nil
	}
	return jsonResult(sessionJSON(sess)), nil
}

// HandlePending implements the remex/pending MCP tool.
func (h *Handlers) HandlePending(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pending, err := h.Client.PendingApprovals(ctx)
	if err != nil {
		return errorResult(apiError(err)), nil
	}

	rows := make([]map[string]any, 0, len(pending))
	for _, p := range pending {
		rows = append(rows, map[string]any{
			"sessionId":    p.SessionID,
			"stepNumber":   p.StepNumber,
			"command":      p.Command,
			"description":  p.Description,
			"runbookTitle": p.RunbookTitle,
			"severity":     p.Severity,
		})
	}
	return jsonResult(rows), nil
}

// HandleApprove implements the remex/approve MCP tool.
func (h *Handlers) HandleApprove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, _ := args["id"].(string)
	if id == "" {
		return errorResult("id argument is required"), nil
	}
	stepNumber, ok := args["stepNumber"].(float64)
	if !ok {
		return errorResult("stepNumber argument is required"), nil
	}
	approve, ok := args["approve"].(bool)
	if !ok {
		return errorResult("approve argument is required"), nil
	}
	notes, _ := args["notes"].(string)

	if err := h.Client.ApproveStep(ctx, id, int(stepNumber), approve, notes); err != nil {
		return errorResult(apiError(err)), nil
	}
	verdict := "approved"
	if !approve {
		verdict = "changes requested"
	}
	return textResult(fmt.Sprintf("✓ step %d of session %s: %s", int(stepNumber), id, verdict)), nil
}

// sessionJSON renders one session in the camelCase shape agents see on the
// wire elsewhere.
func sessionJSON(s model.ExecutionSession) map[string]any {
	steps := make([]map[string]any, 0, len(s.Steps))
	for _, st := range s.Steps {
		row := map[string]any{
			"stepNumber":  st.StepNumber,
			"type":        string(st.Type),
			"command":     st.Command,
			"description": st.Description,
			"completed":   st.Completed,
			"actionable":  st.Actionable(),
		}
		if st.Success.Known() {
			row["success"] = st.Success.True()
		}
		if st.RequiresApproval {
			row["requiresApproval"] = true
			if st.Approved.Known() {
				row["approved"] = st.Approved.True()
			}
		}
		if st.Output != "" {
			row["output"] = st.Output
		}
		if st.Error != "" {
			row["error"] = st.Error
		}
		if st.DurationMs > 0 {
			row["durationMs"] = st.DurationMs
		}
		steps = append(steps, row)
	}
	return map[string]any{
		"id":               s.ID,
		"runbookId":        s.RunbookID,
		"runbookTitle":     s.RunbookTitle,
		"issueDescription": s.IssueDescription,
		"status":           string(s.Status),
		"currentStep":      s.CurrentStep,
		"waitingApproval":  s.WaitingForApproval,
		"progressPercent":  reconcile.Progress(s),
		"steps":            steps,
	}
}

// apiError maps the client error taxonomy onto agent-readable messages.
func apiError(err error) string {
	var fe *api.FatalSessionError
	if errors.As(err, &fe) {
		return fmt.Sprintf("session %s not found or gone", fe.SessionID)
	}
	var ce *api.ConflictError
	if errors.As(err, &ce) {
		return fmt.Sprintf("rejected by executor: %s", ce.Message)
	}
	return err.Error()
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(string(data))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(msg)},
		IsError: true,
	}
}
