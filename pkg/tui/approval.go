package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/remex/pkg/model"
)

// approvalDecision is the outcome of the approval overlay.
type approvalDecision int

const (
	decisionPending approvalDecision = iota
	decisionApprove
	decisionDeny
	decisionCancel
)

// approvalOverlay renders the modal confirming an approval-gated step.
type approvalOverlay struct {
	visible bool

	sessionID string
	step      model.Step
	title     string

	notes        textinput.Model
	editingNotes bool

	width  int
	height int
}

func newApprovalOverlay() approvalOverlay {
	ti := textinput.New()
	ti.Placeholder = "Decision notes (optional)..."
	ti.CharLimit = 1024
	ti.Width = 60
	return approvalOverlay{notes: ti}
}

// Show displays the overlay for a gated step.
func (a *approvalOverlay) Show(sessionID, runbookTitle string, st model.Step) {
	a.visible = true
	a.sessionID = sessionID
	a.step = st
	a.title = runbookTitle
	a.notes.Reset()
	a.editingNotes = false
}

// Hide dismisses the overlay.
func (a *approvalOverlay) Hide() {
	a.visible = false
	a.notes.Blur()
}

// Notes returns the typed decision notes.
func (a *approvalOverlay) Notes() string { return a.notes.Value() }

// Update routes a key press. While notes are being edited all input goes to
// the text field; otherwise a/d/esc decide.
func (a *approvalOverlay) Update(msg tea.KeyMsg) (approvalDecision, tea.Cmd) {
	if a.editingNotes {
		switch msg.String() {
		case "enter", "esc":
			a.editingNotes = false
			a.notes.Blur()
			return decisionPending, nil
		}
		var cmd tea.Cmd
		a.notes, cmd = a.notes.Update(msg)
		return decisionPending, cmd
	}

	switch msg.String() {
	case "a":
		return decisionApprove, nil
	case "d":
		return decisionDeny, nil
	case "n":
		a.editingNotes = true
		return decisionPending, a.notes.Focus()
	case "esc":
		return decisionCancel, nil
	}
	return decisionPending, nil
}

// View renders the approval modal centered on screen.
func (a *approvalOverlay) View() string {
	st := a.step

	body := overlayTitle.Render(fmt.Sprintf("Approval required — step %d", st.StepNumber)) + "\n\n"
	if a.title != "" {
		body += detailLabelStyle.Render("Runbook: ") + detailValueStyle.Render(a.title) + "\n"
	}
	if st.Severity != "" {
		body += detailLabelStyle.Render("Severity: ") + stepDanger.Render(st.Severity) + "\n"
	}
	if st.Command != "" {
		body += detailLabelStyle.Render("Command: ") + commandStyle.Render(st.Command) + "\n"
	}
	if st.Description != "" {
		body += "\n" + renderMarkdownWidth(st.Description, a.width-12) + "\n"
	}

	body += "\n" + detailLabelStyle.Render("Notes: ") + a.notes.View() + "\n"

	if a.editingNotes {
		body += "\n" + overlayHint.Render("Enter to finish notes")
	} else {
		body += "\n" + keyStyle.Render("a") + keyDescStyle.Render(":approve") + "  " +
			keyStyle.Render("d") + keyDescStyle.Render(":request changes") + "  " +
			keyStyle.Render("n") + keyDescStyle.Render(":notes") + "  " +
			keyStyle.Render("Esc") + keyDescStyle.Render(":cancel")
	}

	contentW := a.width - 8
	if contentW < 50 {
		contentW = 50
	}
	box := overlayBorder.Width(contentW).Render(body)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, box)
}
