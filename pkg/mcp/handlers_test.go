package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/remex/pkg/api"
)

func testHandlers(t *testing.T, mux *http.ServeMux) *Handlers {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &Handlers{Client: api.New(srv.URL)}
}

func callArgs(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestHandleSession_MissingID(t *testing.T) {
	h := testHandlers(t, http.NewServeMux())
	res, err := h.HandleSession(context.Background(), callArgs(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error for missing id")
	}
}

func TestHandleSession_RendersSnapshot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions/sess-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "sess-1", "status": "in_progress", "runbookTitle": "Disk cleanup",
			"steps": [
				{"stepNumber": 1, "completed": "true", "success": "true"},
				{"stepNumber": 2, "requiresApproval": true}
			]
		}`))
	})
	h := testHandlers(t, mux)

	res, err := h.HandleSession(context.Background(), callArgs(map[string]any{"id": "sess-1"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("IsError: %s", resultText(t, res))
	}
	text := resultText(t, res)
	for _, want := range []string{`"Disk cleanup"`, `"progressPercent": 50`, `"requiresApproval": true`} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %s:\n%s", want, text)
		}
	}
}

func TestHandleSession_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := testHandlers(t, mux)

	res, err := h.HandleSession(context.Background(), callArgs(map[string]any{"id": "nope"}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error for missing session")
	}
	if text := resultText(t, res); !strings.Contains(text, "not found or gone") {
		t.Errorf("unexpected message: %s", text)
	}
}

func TestHandleSessions_StatusFilter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": "a", "status": "completed"},
			{"id": "b", "status": "in_progress"}
		]`))
	})
	h := testHandlers(t, mux)

	res, err := h.HandleSessions(context.Background(), callArgs(map[string]any{"status": "in_progress"}))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(t, res)
	if strings.Contains(text, `"a"`) || !strings.Contains(text, `"b"`) {
		t.Errorf("filter not applied:\n%s", text)
	}
}

func TestHandleApprove(t *testing.T) {
	var gotPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions/sess-1/steps/2/approve", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	})
	h := testHandlers(t, mux)

	res, err := h.HandleApprove(context.Background(), callArgs(map[string]any{
		"id": "sess-1", "stepNumber": float64(2), "approve": true, "notes": "ok",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("IsError: %s", resultText(t, res))
	}
	if gotPath == "" {
		t.Error("approval never reached the server")
	}
}

func TestHandleApprove_Conflict(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions/sess-1/steps/2/approve", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": "step already resolved"}`))
	})
	h := testHandlers(t, mux)

	res, err := h.HandleApprove(context.Background(), callArgs(map[string]any{
		"id": "sess-1", "stepNumber": float64(2), "approve": false,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error for conflict")
	}
	if text := resultText(t, res); !strings.Contains(text, "step already resolved") {
		t.Errorf("conflict message lost: %s", text)
	}
}

func TestHandleApprove_MissingArgs(t *testing.T) {
	h := testHandlers(t, http.NewServeMux())
	for _, args := range []map[string]any{
		{},
		{"id": "s"},
		{"id": "s", "stepNumber": float64(1)},
	} {
		res, err := h.HandleApprove(context.Background(), callArgs(args))
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsError {
			t.Errorf("args %v accepted", args)
		}
	}
}
