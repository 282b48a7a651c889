// Package tui implements the operator console: a Bubble Tea app showing the
// session dashboard, a live execution detail view, and the cross-session
// approval queue. Views render the canonical model only — all session state
// flows through the monitor and the reconciling store, never from ad hoc
// fetches inside views.
package tui

import "github.com/charmbracelet/lipgloss"

// Step status glyphs — convey meaning without relying on color alone.
const (
	GlyphPending = "○"
	GlyphRunning = "▸"
	GlyphPassed  = "✓"
	GlyphFailed  = "✗"
	GlyphGated   = "⏸"
	GlyphLive    = "●"
	GlyphPolling = "◍"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

// --- Header styles ---

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var liveBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorGreen)

var pollingBadgeStyle = lipgloss.NewStyle().
	Foreground(colorYellow)

var offlineBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorRed)

// --- Step list styles ---

var (
	stepNormal = lipgloss.NewStyle().
			Foreground(colorWhite)

	stepRunning = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	stepPassed = lipgloss.NewStyle().
			Foreground(colorGreen)

	stepFailed = lipgloss.NewStyle().
			Foreground(colorRed)

	stepGated = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	stepNotice = lipgloss.NewStyle().
			Foreground(colorYellow)

	stepDanger = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)
)

// --- Panel styles ---

var (
	panelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim)

	panelTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			Padding(0, 1)

	commandStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)
)

// --- Detail bar styles ---

var (
	detailBarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorBlue)

	detailValueStyle = lipgloss.NewStyle().
				Foreground(colorWhite)

	statusPassedStyle = lipgloss.NewStyle().
				Foreground(colorGreen).
				Bold(true)

	statusFailedStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	statusRunningStyle = lipgloss.NewStyle().
				Foreground(colorYellow)

	statusGatedStyle = lipgloss.NewStyle().
				Foreground(colorCyan).
				Bold(true)
)

// --- Key bar styles ---

var (
	keyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	keyBarStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

// --- Overlay styles ---

var (
	overlayBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorCyan).
			Padding(1, 2)

	overlayTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	overlayHint = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)
)

// --- Error style ---

var errorStyle = lipgloss.NewStyle().
	Foreground(colorRed).
	Bold(true)

// --- Spinner style ---

var spinnerStyle = lipgloss.NewStyle().
	Foreground(colorYellow)
