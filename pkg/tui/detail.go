package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/remex/pkg/model"
)

// detailBar renders the selected step's state and the key hints at the
// bottom of the detail view.
type detailBar struct {
	width int
}

// View renders the detail bar for the selected step.
func (d *detailBar) View(st *model.Step, elapsed time.Duration, view viewKind, overlay overlayKind, notice string) string {
	if st == nil {
		content := "  No step selected"
		content += "\n\n" + keyBarStyle.Render(keyBarText(view, overlay))
		return detailBarStyle.Width(d.width - 4).Render(content)
	}

	var parts []string
	parts = append(parts, detailLabelStyle.Render("Step: ")+
		detailValueStyle.Render(fmt.Sprintf("%d (%s)", st.StepNumber, st.Type)))

	switch {
	case st.Completed && st.Success.True():
		parts = append(parts, detailLabelStyle.Render("│ ")+statusPassedStyle.Render(GlyphPassed+" succeeded"))
	case st.Completed && st.Success.False():
		parts = append(parts, detailLabelStyle.Render("│ ")+statusFailedStyle.Render(GlyphFailed+" failed"))
	case st.Completed:
		parts = append(parts, detailLabelStyle.Render("│ ")+statusPassedStyle.Render(GlyphPassed+" completed"))
	case !st.Actionable():
		parts = append(parts, detailLabelStyle.Render("│ ")+statusGatedStyle.Render(GlyphGated+" awaiting approval"))
	case st.Running():
		parts = append(parts, detailLabelStyle.Render("│ ")+statusRunningStyle.Render(GlyphRunning+" executing"))
	default:
		parts = append(parts, detailLabelStyle.Render("│ ")+keyDescStyle.Render(GlyphPending+" pending"))
	}

	if st.DurationMs > 0 {
		parts = append(parts, detailLabelStyle.Render("│ ")+
			detailValueStyle.Render(fmt.Sprintf("%dms", st.DurationMs)))
	}
	if !st.ReopenedAt.IsZero() {
		parts = append(parts, detailLabelStyle.Render("│ ")+
			stepNotice.Render("reopened "+st.ReopenedAt.Format("15:04:05")))
	}
	parts = append(parts, detailLabelStyle.Render("│ elapsed ")+
		detailValueStyle.Render(formatElapsed(elapsed)))

	content := strings.Join(parts, " ")

	if st.Command != "" {
		maxW := d.width - 14
		if maxW < 10 {
			maxW = 10
		}
		content += "\n" + detailLabelStyle.Render("  Command: ") +
			commandStyle.Render(runewidth.Truncate(st.Command, maxW, "…"))
	}
	if st.Notes != "" {
		content += "\n" + detailLabelStyle.Render("  Notes: ") +
			detailValueStyle.Render(runewidth.Truncate(st.Notes, d.width-12, "…"))
	}
	if notice != "" {
		content += "\n  " + errorStyle.Render(notice)
	}

	content += "\n\n" + keyBarStyle.Render(keyBarText(view, overlay))
	return detailBarStyle.Width(d.width - 4).Render(content)
}

// formatElapsed renders a duration as h:mm:ss or m:ss.
func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
