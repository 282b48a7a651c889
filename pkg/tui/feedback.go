package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/remex/pkg/model"
)

// feedbackStage walks the questions of the end-of-session form in order.
type feedbackStage int

const (
	stageWasSuccessful feedbackStage = iota
	stageIssueResolved
	stageRating
	stageComments
	stageSuggestions
	stageDone
)

// feedbackOverlay renders the one-time feedback form shown when a session
// reaches 100% completion.
type feedbackOverlay struct {
	visible bool
	stage   feedbackStage
	fb      model.Feedback

	input textinput.Model

	width  int
	height int
}

func newFeedbackOverlay() feedbackOverlay {
	ti := textinput.New()
	ti.CharLimit = 2048
	ti.Width = 60
	return feedbackOverlay{input: ti}
}

// Show resets and displays the form.
func (f *feedbackOverlay) Show() {
	f.visible = true
	f.stage = stageWasSuccessful
	f.fb = model.Feedback{}
	f.input.Reset()
	f.input.Blur()
}

// Hide dismisses the form.
func (f *feedbackOverlay) Hide() {
	f.visible = false
	f.input.Blur()
}

// Update routes a key press. It returns true with the completed record once
// the last stage is answered.
func (f *feedbackOverlay) Update(msg tea.KeyMsg) (bool, model.Feedback, tea.Cmd) {
	switch f.stage {
	case stageWasSuccessful, stageIssueResolved:
		switch msg.String() {
		case "y":
			f.setBool(true)
			f.stage++
		case "n":
			f.setBool(false)
			f.stage++
		}

	case stageRating:
		switch msg.String() {
		case "1", "2", "3", "4", "5":
			f.fb.Rating = int(msg.String()[0] - '0')
			f.stage = stageComments
			f.input.Reset()
			f.input.Placeholder = "Comments (optional)..."
			return false, f.fb, f.input.Focus()
		}

	case stageComments:
		if msg.String() == "enter" {
			f.fb.FeedbackText = f.input.Value()
			f.stage = stageSuggestions
			f.input.Reset()
			f.input.Placeholder = "Suggested improvements (optional)..."
			return false, f.fb, f.input.Focus()
		}
		var cmd tea.Cmd
		f.input, cmd = f.input.Update(msg)
		return false, f.fb, cmd

	case stageSuggestions:
		if msg.String() == "enter" {
			f.fb.Suggestions = f.input.Value()
			f.stage = stageDone
			f.input.Blur()
			return true, f.fb, nil
		}
		var cmd tea.Cmd
		f.input, cmd = f.input.Update(msg)
		return false, f.fb, cmd
	}
	return false, f.fb, nil
}

func (f *feedbackOverlay) setBool(v bool) {
	if f.stage == stageWasSuccessful {
		f.fb.WasSuccessful = v
	} else {
		f.fb.IssueResolved = v
	}
}

// View renders the feedback modal centered on screen.
func (f *feedbackOverlay) View() string {
	body := overlayTitle.Render("Session complete — feedback") + "\n\n"

	switch f.stage {
	case stageWasSuccessful:
		body += "Did the runbook run successfully? " +
			keyStyle.Render("y") + keyDescStyle.Render("/") + keyStyle.Render("n")
	case stageIssueResolved:
		body += "Is the underlying issue resolved? " +
			keyStyle.Render("y") + keyDescStyle.Render("/") + keyStyle.Render("n")
	case stageRating:
		body += "Rate this runbook: " +
			keyStyle.Render("1") + keyDescStyle.Render("-") + keyStyle.Render("5")
	case stageComments, stageSuggestions:
		label := "Comments"
		if f.stage == stageSuggestions {
			label = "Suggestions"
		}
		body += detailLabelStyle.Render(label+": ") + f.input.View() + "\n\n" +
			overlayHint.Render("Enter to continue")
	}

	body += "\n\n" + overlayHint.Render(fmt.Sprintf("question %d of 5 — Esc dismisses", int(f.stage)+1))

	contentW := f.width - 8
	if contentW < 50 {
		contentW = 50
	}
	box := overlayBorder.Width(contentW).Render(body)
	return lipgloss.Place(f.width, f.height, lipgloss.Center, lipgloss.Center, box)
}
