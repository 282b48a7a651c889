package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/remex/pkg/api"
)

// NewServer creates a new MCP server with remex tools registered.
func NewServer(version string, client *api.Client) *server.MCPServer {
	s := server.NewMCPServer(
		"remex",
		version,
		server.WithToolCapabilities(true),
	)
	h := &Handlers{Client: client}

	s.AddTool(
		mcp.NewTool("remex/sessions",
			mcp.WithDescription("List remediation execution sessions with status and progress"),
			mcp.WithString("status", mcp.Description("Only sessions in this status (e.g. in_progress, waiting_approval)")),
		),
		h.HandleSessions,
	)

	s.AddTool(
		mcp.NewTool("remex/session",
			mcp.WithDescription("Fetch the full snapshot of one execution session"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Session identifier")),
		),
		h.HandleSession,
	)

	s.AddTool(
		mcp.NewTool("remex/pending",
			mcp.WithDescription("List steps awaiting operator approval across all sessions"),
		),
		h.HandlePending,
	)

	s.AddTool(
		mcp.NewTool("remex/approve",
			mcp.WithDescription("Resolve an approval gate on a session step"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Session identifier")),
			mcp.WithNumber("stepNumber", mcp.Required(), mcp.Description("Step number of the gated step")),
			mcp.WithBoolean("approve", mcp.Required(), mcp.Description("true approves, false requests changes")),
			mcp.WithString("notes", mcp.Description("Decision notes recorded with the approval")),
		),
		h.HandleApprove,
	)

	return s
}
