package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
)

// outputPanel renders the scrollable output for the selected step.
type outputPanel struct {
	viewport   viewport.Model
	activeStep int
	content    string

	width  int
	height int
	ready  bool
}

func newOutputPanel() outputPanel {
	return outputPanel{activeStep: -1}
}

// SetSize updates the viewport dimensions.
func (p *outputPanel) SetSize(width, height int) {
	p.width = width
	p.height = height

	contentW := width - 4
	contentH := height - 3
	if contentW < 1 {
		contentW = 1
	}
	if contentH < 1 {
		contentH = 1
	}

	if !p.ready {
		p.viewport = viewport.New(contentW, contentH)
		p.ready = true
	} else {
		p.viewport.Width = contentW
		p.viewport.Height = contentH
	}
	p.viewport.SetContent(p.content)
}

// ShowStep displays a step's output, following the tail while the step is
// producing new output. Switching steps resets scroll to the bottom.
func (p *outputPanel) ShowStep(stepNumber int, output, errMsg string) {
	content := output
	if errMsg != "" {
		content += "\n" + errorStyle.Render("Error: "+errMsg) + "\n"
	}
	if content == "" {
		content = keyDescStyle.Render("  (no output)")
	}

	changed := stepNumber != p.activeStep || content != p.content
	p.activeStep = stepNumber
	p.content = content
	if p.ready && changed {
		atBottom := p.viewport.AtBottom()
		p.viewport.SetContent(content)
		if atBottom {
			p.viewport.GotoBottom()
		}
	}
}

// PageUp scrolls the viewport up.
func (p *outputPanel) PageUp() {
	if p.ready {
		p.viewport.HalfViewUp()
	}
}

// PageDown scrolls the viewport down.
func (p *outputPanel) PageDown() {
	if p.ready {
		p.viewport.HalfViewDown()
	}
}

// View renders the output panel.
func (p *outputPanel) View() string {
	title := panelTitle.Render("Output")

	var content string
	if p.ready {
		content = p.viewport.View()
	} else {
		content = "  Waiting for session data..."
	}

	scrollInfo := ""
	if p.ready && p.viewport.TotalLineCount() > p.viewport.VisibleLineCount() {
		scrollInfo = fmt.Sprintf(" %3.0f%%", p.viewport.ScrollPercent()*100)
	}

	header := title
	if scrollInfo != "" {
		padding := p.width - 4 - len("Output") - len(scrollInfo)
		if padding < 0 {
			padding = 0
		}
		header = title + strings.Repeat(" ", padding) + keyDescStyle.Render(scrollInfo)
	}

	return panelBorder.Width(p.width).Height(p.height).Render(
		header + "\n" + content,
	)
}
