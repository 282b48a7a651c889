package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/remex/pkg/model"
	"github.com/ormasoftchile/remex/pkg/policy"
)

// stepsPanel renders the scrollable step list for the detail view.
type stepsPanel struct {
	steps  []model.Step
	policy *policy.Policy

	cursor int // highlighted step index (for browsing)
	offset int // scroll offset

	width  int
	height int
}

func newStepsPanel(pol *policy.Policy) stepsPanel {
	return stepsPanel{policy: pol, cursor: -1}
}

// SetSteps replaces the list with the store's current steps, following the
// executor's current step when the operator is not browsing.
func (p *stepsPanel) SetSteps(steps []model.Step, currentStep int) {
	p.steps = steps
	if p.cursor < 0 || p.cursor >= len(steps) {
		p.cursor = indexOf(steps, currentStep)
	}
	p.ensureVisible()
}

func indexOf(steps []model.Step, stepNumber int) int {
	for i, st := range steps {
		if st.StepNumber == stepNumber {
			return i
		}
	}
	if len(steps) > 0 {
		return 0
	}
	return -1
}

// CursorUp moves the browsing cursor up.
func (p *stepsPanel) CursorUp() {
	if p.cursor > 0 {
		p.cursor--
		p.ensureVisible()
	}
}

// CursorDown moves the browsing cursor down.
func (p *stepsPanel) CursorDown() {
	if p.cursor < len(p.steps)-1 {
		p.cursor++
		p.ensureVisible()
	}
}

// Selected returns the step at the cursor, or nil.
func (p *stepsPanel) Selected() *model.Step {
	if p.cursor >= 0 && p.cursor < len(p.steps) {
		return &p.steps[p.cursor]
	}
	return nil
}

func (p *stepsPanel) ensureVisible() {
	visible := p.height - 2 // border + title
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

// glyphFor picks the status glyph for a step.
func glyphFor(st model.Step) string {
	switch {
	case st.Completed && st.Success.True():
		return GlyphPassed
	case st.Completed && st.Success.False():
		return GlyphFailed
	case st.Completed:
		return GlyphPassed // completed, success unreported
	case !st.Actionable():
		return GlyphGated
	case st.Running():
		return GlyphRunning
	}
	return GlyphPending
}

// styleFor picks the row style: execution state first, then the display
// policy's emphasis for steps that are still pending.
func (p *stepsPanel) styleFor(st model.Step) lipgloss.Style {
	switch {
	case st.Completed && st.Success.False():
		return stepFailed
	case st.Completed:
		return stepPassed
	case !st.Actionable():
		return stepGated
	case st.Running():
		return stepRunning
	}
	if p.policy != nil {
		switch p.policy.Evaluate(st) {
		case policy.EmphasisDanger:
			return stepDanger
		case policy.EmphasisNotice:
			return stepNotice
		}
	}
	return stepNormal
}

// View renders the step list panel.
func (p *stepsPanel) View() string {
	if len(p.steps) == 0 {
		return panelBorder.Width(p.width).Height(p.height).Render("  No steps yet")
	}

	visible := p.height - 2
	if visible < 1 {
		visible = 1
	}

	var lines []string
	end := p.offset + visible
	if end > len(p.steps) {
		end = len(p.steps)
	}

	for i := p.offset; i < end; i++ {
		st := p.steps[i]
		label := st.Description
		if label == "" {
			label = st.Command
		}
		maxLabel := p.width - 10
		if maxLabel < 4 {
			maxLabel = 4
		}
		label = runewidth.Truncate(label, maxLabel, "…")

		line := fmt.Sprintf(" %s %d. %s", glyphFor(st), st.StepNumber, label)
		style := p.styleFor(st)
		if i == p.cursor {
			line = style.Reverse(true).Render(line)
		} else {
			line = style.Render(line)
		}
		lines = append(lines, line)
	}

	for len(lines) < visible {
		lines = append(lines, "")
	}

	title := panelTitle.Render("Steps")
	return panelBorder.Width(p.width).Height(p.height).Render(
		title + "\n" + strings.Join(lines, "\n"),
	)
}
