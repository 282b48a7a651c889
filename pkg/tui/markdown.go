package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// renderMarkdownWidth renders markdown (step descriptions) constrained to a
// column width, for overlays where no viewport controls wrapping. Falls back
// to the raw input if glamour is unavailable or rendering fails.
func renderMarkdownWidth(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
