package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds all console key bindings.
type keyMap struct {
	Open     key.Binding
	Back     key.Binding
	Up       key.Binding
	Down     key.Binding
	Approve  key.Binding
	Deny     key.Binding
	Succeed  key.Binding
	Fail     key.Binding
	Reopen   key.Binding
	Sessions key.Binding
	Queue    key.Binding
	Quit     key.Binding
	PgUp     key.Binding
	PgDown   key.Binding
}

var keys = keyMap{
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Approve: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "approve"),
	),
	Deny: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "request changes"),
	),
	Succeed: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "mark successful"),
	),
	Fail: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "mark failed"),
	),
	Reopen: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reopen"),
	),
	Sessions: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "sessions"),
	),
	Queue: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "approvals"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	PgUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "scroll up"),
	),
	PgDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "scroll down"),
	),
}

// keyBarText renders the context-sensitive key hint string.
func keyBarText(view viewKind, overlay overlayKind) string {
	switch overlay {
	case overlayApproval:
		return keyStyle.Render("a") + keyDescStyle.Render(":approve") + "  " +
			keyStyle.Render("d") + keyDescStyle.Render(":request changes") + "  " +
			keyStyle.Render("Esc") + keyDescStyle.Render(":cancel")
	case overlayFeedback:
		return keyStyle.Render("Enter") + keyDescStyle.Render(":next") + "  " +
			keyStyle.Render("Esc") + keyDescStyle.Render(":dismiss")
	}

	switch view {
	case viewDashboard:
		return keyStyle.Render("enter") + keyDescStyle.Render(":open") + "  " +
			keyStyle.Render("↑↓") + keyDescStyle.Render(":select") + "  " +
			keyStyle.Render("2") + keyDescStyle.Render(":approvals") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	case viewQueue:
		return keyStyle.Render("a") + keyDescStyle.Render(":approve") + "  " +
			keyStyle.Render("d") + keyDescStyle.Render(":request changes") + "  " +
			keyStyle.Render("enter") + keyDescStyle.Render(":open session") + "  " +
			keyStyle.Render("1") + keyDescStyle.Render(":sessions") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	}
	return keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
		keyStyle.Render("a") + keyDescStyle.Render(":approve") + "  " +
		keyStyle.Render("s/f") + keyDescStyle.Render(":mark") + "  " +
		keyStyle.Render("r") + keyDescStyle.Render(":reopen") + "  " +
		keyStyle.Render("PgUp/Dn") + keyDescStyle.Render(":scroll") + "  " +
		keyStyle.Render("esc") + keyDescStyle.Render(":back") + "  " +
		keyStyle.Render("q") + keyDescStyle.Render(":quit")
}
