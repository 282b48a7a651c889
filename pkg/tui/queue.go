package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/remex/pkg/model"
)

// queuePanel renders the cross-session approval queue.
type queuePanel struct {
	pending []model.PendingApproval
	cursor  int
	offset  int

	width  int
	height int
}

// SetPending replaces the queue, keeping the cursor on the same entry where
// possible.
func (p *queuePanel) SetPending(pending []model.PendingApproval) {
	var selID string
	var selStep int
	if p.cursor >= 0 && p.cursor < len(p.pending) {
		selID = p.pending[p.cursor].SessionID
		selStep = p.pending[p.cursor].StepNumber
	}
	p.pending = pending
	p.cursor = 0
	for i, a := range pending {
		if a.SessionID == selID && a.StepNumber == selStep {
			p.cursor = i
			break
		}
	}
	p.ensureVisible()
}

// Selected returns the pending approval under the cursor, or nil.
func (p *queuePanel) Selected() *model.PendingApproval {
	if p.cursor >= 0 && p.cursor < len(p.pending) {
		return &p.pending[p.cursor]
	}
	return nil
}

// CursorUp moves the cursor up.
func (p *queuePanel) CursorUp() {
	if p.cursor > 0 {
		p.cursor--
		p.ensureVisible()
	}
}

// CursorDown moves the cursor down.
func (p *queuePanel) CursorDown() {
	if p.cursor < len(p.pending)-1 {
		p.cursor++
		p.ensureVisible()
	}
}

func (p *queuePanel) ensureVisible() {
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

// View renders the queue.
func (p *queuePanel) View() string {
	title := panelTitle.Render("Pending approvals")

	if len(p.pending) == 0 {
		return panelBorder.Width(p.width).Height(p.height).Render(
			title + "\n  Nothing waiting for approval")
	}

	visible := p.height - 3
	if visible < 1 {
		visible = 1
	}
	end := p.offset + visible
	if end > len(p.pending) {
		end = len(p.pending)
	}

	header := keyDescStyle.Render(fmt.Sprintf(" %-12s %4s %-10s %s",
		"SESSION", "STEP", "SEVERITY", "COMMAND"))
	lines := []string{header}

	for i := p.offset; i < end; i++ {
		a := p.pending[i]
		maxCmd := p.width - 36
		if maxCmd < 8 {
			maxCmd = 8
		}
		line := fmt.Sprintf(" %-12s %4d %-10s %s",
			runewidth.Truncate(a.SessionID, 12, "…"), a.StepNumber,
			a.Severity, runewidth.Truncate(a.Command, maxCmd, "…"))

		style := stepGated
		if a.Severity == "high" || a.Severity == "critical" {
			style = stepDanger
		}
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
