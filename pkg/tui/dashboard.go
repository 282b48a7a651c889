package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/remex/pkg/model"
	"github.com/ormasoftchile/remex/pkg/reconcile"
)

// dashboardPanel renders the all-sessions list.
type dashboardPanel struct {
	sessions []model.ExecutionSession
	cursor   int
	offset   int

	width  int
	height int
}

// SetSessions replaces the list, keeping the cursor on the same session
// where possible.
func (p *dashboardPanel) SetSessions(sessions []model.ExecutionSession) {
	var selectedID string
	if p.cursor >= 0 && p.cursor < len(p.sessions) {
		selectedID = p.sessions[p.cursor].ID
	}
	p.sessions = sessions
	p.cursor = 0
	for i, s := range sessions {
		if s.ID == selectedID {
			p.cursor = i
			break
		}
	}
	p.ensureVisible()
}

// Selected returns the session under the cursor, or nil.
func (p *dashboardPanel) Selected() *model.ExecutionSession {
	if p.cursor >= 0 && p.cursor < len(p.sessions) {
		return &p.sessions[p.cursor]
	}
	return nil
}

// CursorUp moves the cursor up.
func (p *dashboardPanel) CursorUp() {
	if p.cursor > 0 {
		p.cursor--
		p.ensureVisible()
	}
}

// CursorDown moves the cursor down.
func (p *dashboardPanel) CursorDown() {
	if p.cursor < len(p.sessions)-1 {
		p.cursor++
		p.ensureVisible()
	}
}

func (p *dashboardPanel) ensureVisible() {
	visible := p.height - 3
	if visible < 1 {
		visible = 1
	}
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+visible {
		p.offset = p.cursor - visible + 1
	}
	if p.offset < 0 {
		p.offset = 0
	}
}

func statusStyle(s model.SessionStatus) lipgloss.Style {
	switch s {
	case model.StatusCompleted:
		return stepPassed
	case model.StatusFailed, model.StatusAbandoned:
		return stepFailed
	case model.StatusWaitingApproval:
		return stepGated
	case model.StatusInProgress:
		return stepRunning
	}
	return stepNormal
}

// View renders the dashboard.
func (p *dashboardPanel) View() string {
	title := panelTitle.Render("Sessions")

	if len(p.sessions) == 0 {
		return panelBorder.Width(p.width).Height(p.height).Render(
			title + "\n  No active sessions")
	}

	visible := p.height - 3
	if visible < 1 {
		visible = 1
	}
	end := p.offset + visible
	if end > len(p.sessions) {
		end = len(p.sessions)
	}

	header := keyDescStyle.Render(fmt.Sprintf(" %-12s %-18s %6s  %s",
		"SESSION", "STATUS", "DONE", "RUNBOOK"))
	lines := []string{header}

	for i := p.offset; i < end; i++ {
		s := p.sessions[i]
		name := s.RunbookTitle
		if name == "" {
			name = s.RunbookID
		}
		maxName := p.width - 46
		if maxName < 8 {
			maxName = 8
		}
		name = runewidth.Truncate(name, maxName, "…")

		status := string(s.Status)
		if s.WaitingForApproval {
			status += " " + GlyphGated
		}

		line := fmt.Sprintf(" %-12s %-18s %5.0f%%  %s",
			runewidth.Truncate(s.ID, 12, "…"), status,
			reconcile.Progress(s), name)

		style := statusStyle(s.Status)
		if i == p.cursor {
			line = style.Reverse(true).Render(line)
		} else {
			line = style.Render(line)
		}
		lines = append(lines, line)
	}

	for len(lines) < visible+1 {
		lines = append(lines, "")
	}

	return panelBorder.Width(p.width).Height(p.height).Render(
		title + "\n" + strings.Join(lines, "\n"),
	)
}
