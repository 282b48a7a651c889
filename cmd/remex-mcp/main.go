// Package main provides the remex-mcp binary — MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/remex/pkg/api"
	rmcp "github.com/ormasoftchile/remex/pkg/mcp"
)

var version = "dev"

func main() {
	baseURL := os.Getenv("REMEX_EXECUTOR_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	s := rmcp.NewServer(version, api.New(baseURL))
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
