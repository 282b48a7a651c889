package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/remex/pkg/api"
	"github.com/ormasoftchile/remex/pkg/config"
	"github.com/ormasoftchile/remex/pkg/model"
	"github.com/ormasoftchile/remex/pkg/policy"
	"github.com/ormasoftchile/remex/pkg/reconcile"
	"github.com/ormasoftchile/remex/pkg/session"
)

// --- Tea messages ---

// sessionsMsg carries a dashboard list fetch result.
type sessionsMsg struct {
	sessions []model.ExecutionSession
	err      error
}

// pendingMsg carries an approval-queue fetch result.
type pendingMsg struct {
	pending []model.PendingApproval
	err     error
}

// storeChangedMsg signals that the open session's store mutated (or that
// the bounded wait expired; either way the detail view re-reads the store).
type storeChangedMsg struct {
	sessionID string
}

// elapsedTickMsg carries one beat of the session timer. ok is false once
// the clock has stopped, which ends the listen loop.
type elapsedTickMsg struct {
	elapsed time.Duration
	ok      bool
}

// listTickMsg and queueTickMsg drive the fixed-interval list polls.
type listTickMsg struct{}
type queueTickMsg struct{}

// actionDoneMsg reports an operator mutation (approve, mark, reopen).
type actionDoneMsg struct {
	err     error
	refresh bool // refetch the approval queue afterwards
}

// feedbackSentMsg reports the feedback submission.
type feedbackSentMsg struct{ err error }

// --- View state ---

type viewKind int

const (
	viewDashboard viewKind = iota
	viewDetail
	viewQueue
)

type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayApproval
	overlayFeedback
)

// Model is the top-level Bubble Tea model for the console.
type Model struct {
	ctx    context.Context
	client *api.Client
	cfg    *config.Config

	view    viewKind
	overlay overlayKind

	dashboard dashboardPanel
	queue     queuePanel
	steps     stepsPanel
	output    outputPanel
	detail    detailBar
	approval  approvalOverlay
	feedback  feedbackOverlay
	spinner   spinner.Model

	// Open session state. All nil/zero outside the detail view.
	mon         *session.Monitor
	clock       *session.ElapsedClock
	openID      string
	sess        model.ExecutionSession
	elapsed     time.Duration
	unavailable bool // FatalSessionError: terminal state for this session

	notice string // transient operator-visible message

	width  int
	height int
}

// Config holds the parameters needed to launch the console.
type Config struct {
	Client  *api.Client
	Console *config.Config
	Policy  *policy.Policy

	// SessionID opens the detail view directly instead of the dashboard.
	SessionID string
}

// Run starts the console and blocks until the operator quits.
func Run(ctx context.Context, cfg Config) error {
	return run(ctx, cfg, viewDashboard)
}

// RunQueue starts the console on the pending-approvals queue.
func RunQueue(ctx context.Context, cfg Config) error {
	return run(ctx, cfg, viewQueue)
}

func run(ctx context.Context, cfg Config, initial viewKind) error {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		ctx:      ctx,
		client:   cfg.Client,
		cfg:      cfg.Console,
		view:     initial,
		steps:    newStepsPanel(cfg.Policy),
		output:   newOutputPanel(),
		approval: newApprovalOverlay(),
		feedback: newFeedbackOverlay(),
		spinner:  sp,
	}
	if cfg.SessionID != "" {
		m.openSession(cfg.SessionID)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(Model); ok && fm.mon != nil {
		fm.closeSession()
	}
	return err
}

// Init starts the spinner, the list polls, and the detail listeners when a
// session was preselected.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.fetchSessions(), m.fetchPending(), m.listTick(), m.queueTick()}
	if m.mon != nil {
		cmds = append(cmds, m.waitStoreChange(), m.elapsedTick())
	}
	return tea.Batch(cmds...)
}

// --- Commands ---

func (m Model) fetchSessions() tea.Cmd {
	return func() tea.Msg {
		sessions, err := m.client.ListSessions(m.ctx)
		return sessionsMsg{sessions: sessions, err: err}
	}
}

func (m Model) fetchPending() tea.Cmd {
	return func() tea.Msg {
		pending, err := m.client.PendingApprovals(m.ctx)
		return pendingMsg{pending: pending, err: err}
	}
}

func (m Model) listTick() tea.Cmd {
	return tea.Tick(m.cfg.ListInterval(), func(time.Time) tea.Msg { return listTickMsg{} })
}

func (m Model) queueTick() tea.Cmd {
	return tea.Tick(m.cfg.ApprovalsInterval(), func(time.Time) tea.Msg { return queueTickMsg{} })
}

// elapsedTick resolves on the clock's next beat. The clock coalesces for
// slow consumers and closes its channel when stopped.
func (m Model) elapsedTick() tea.Cmd {
	clock := m.clock
	return func() tea.Msg {
		d, ok := <-clock.Ticks()
		return elapsedTickMsg{elapsed: d, ok: ok}
	}
}

// waitStoreChange resolves on the next store mutation, or after a bound so
// the goroutine never outlives a closed session by much.
func (m Model) waitStoreChange() tea.Cmd {
	store := m.mon.Store()
	id := m.openID
	return func() tea.Msg {
		select {
		case <-store.Changed():
		case <-time.After(time.Second):
		}
		return storeChangedMsg{sessionID: id}
	}
}

// --- Session lifecycle ---

func (m *Model) openSession(id string) {
	m.closeSession()
	m.mon = session.Open(m.ctx, m.client, id, session.Options{
		PollInterval:  m.cfg.DetailInterval(),
		DisableStream: m.cfg.Stream.Disabled,
	})
	m.clock = session.NewElapsedClock(m.ctx, time.Time{})
	m.openID = id
	m.sess = model.ExecutionSession{ID: id}
	m.unavailable = false
	m.notice = ""
	m.view = viewDetail
	m.steps = newStepsPanel(m.steps.policy)
	m.output = newOutputPanel()
	m.layout()
}

func (m *Model) closeSession() {
	if m.mon != nil {
		m.mon.Close()
		m.mon = nil
	}
	if m.clock != nil {
		m.clock.Stop()
		m.clock = nil
	}
	m.openID = ""
}

// refreshDetail re-reads the canonical model into the view panels.
func (m *Model) refreshDetail() {
	if m.mon == nil {
		return
	}
	if err := m.mon.Fatal(); err != nil {
		m.unavailable = true
		return
	}

	m.sess = m.mon.Store().Session()
	m.steps.SetSteps(m.sess.Steps, m.sess.CurrentStep)
	if st := m.steps.Selected(); st != nil {
		m.output.ShowStep(st.StepNumber, st.Output, st.Error)
	}
	m.clock.SetStart(m.sess.StartedAt)
	if m.sess.Status.Terminal() {
		m.clock.FreezeAt(m.sess.CompletedAt)
		m.elapsed = m.clock.Elapsed()
	} else {
		m.clock.Resume()
	}

	if m.overlay == overlayNone && m.mon.Store().TakeFeedbackReady() {
		m.feedback.Show()
		m.overlay = overlayFeedback
	}
}

// --- Update ---

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.approval.width, m.approval.height = msg.Width, msg.Height
		m.feedback.width, m.feedback.height = msg.Width, msg.Height
		m.layout()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case sessionsMsg:
		if msg.err == nil {
			m.dashboard.SetSessions(msg.sessions)
		}

	case pendingMsg:
		if msg.err == nil {
			m.queue.SetPending(msg.pending)
		}

	case listTickMsg:
		cmds = append(cmds, m.fetchSessions(), m.listTick())

	case queueTickMsg:
		cmds = append(cmds, m.fetchPending(), m.queueTick())

	case storeChangedMsg:
		if m.mon != nil && msg.sessionID == m.openID {
			m.refreshDetail()
			cmds = append(cmds, m.waitStoreChange())
		}

	case elapsedTickMsg:
		if msg.ok && m.clock != nil {
			m.elapsed = msg.elapsed
			cmds = append(cmds, m.elapsedTick())
		}

	case actionDoneMsg:
		m.notice = actionNotice(msg.err)
		if msg.refresh {
			cmds = append(cmds, m.fetchPending())
		}
		m.refreshDetail()

	case feedbackSentMsg:
		if msg.err != nil {
			m.notice = actionNotice(msg.err)
		} else {
			m.notice = "feedback submitted"
		}
	}

	return m, tea.Batch(cmds...)
}

// actionNotice maps operator action failures to a short visible message.
// Conflicts are actionable; everything else recovers via the next resync.
func actionNotice(err error) string {
	if err == nil {
		return ""
	}
	var ce *api.ConflictError
	if errors.As(err, &ce) {
		return "rejected: " + ce.Message
	}
	return err.Error()
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) && m.overlay == overlayNone {
		m.closeSession()
		return m, tea.Quit
	}

	switch m.overlay {
	case overlayApproval:
		return m.handleApprovalKey(msg)
	case overlayFeedback:
		return m.handleFeedbackKey(msg)
	}

	switch m.view {
	case viewDashboard:
		return m.handleDashboardKey(msg)
	case viewQueue:
		return m.handleQueueKey(msg)
	}
	return m.handleDetailKey(msg)
}

func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		m.dashboard.CursorUp()
	case key.Matches(msg, keys.Down):
		m.dashboard.CursorDown()
	case key.Matches(msg, keys.Open):
		if s := m.dashboard.Selected(); s != nil {
			m.openSession(s.ID)
			return m, tea.Batch(m.waitStoreChange(), m.elapsedTick())
		}
	case key.Matches(msg, keys.Queue):
		m.view = viewQueue
		return m, m.fetchPending()
	}
	return m, nil
}

func (m Model) handleQueueKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		m.queue.CursorUp()
	case key.Matches(msg, keys.Down):
		m.queue.CursorDown()
	case key.Matches(msg, keys.Sessions), key.Matches(msg, keys.Back):
		m.view = viewDashboard
		return m, m.fetchSessions()
	case key.Matches(msg, keys.Open):
		if a := m.queue.Selected(); a != nil {
			m.openSession(a.SessionID)
			return m, tea.Batch(m.waitStoreChange(), m.elapsedTick())
		}
	case key.Matches(msg, keys.Approve), key.Matches(msg, keys.Deny):
		if a := m.queue.Selected(); a != nil {
			approve := key.Matches(msg, keys.Approve)
			return m, m.approveCmd(a.SessionID, a.StepNumber, approve, "", true)
		}
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		m.closeSession()
		m.view = viewDashboard
		return m, m.fetchSessions()

	case key.Matches(msg, keys.Up):
		m.steps.CursorUp()
		m.showSelected()

	case key.Matches(msg, keys.Down):
		m.steps.CursorDown()
		m.showSelected()

	case key.Matches(msg, keys.PgUp):
		m.output.PageUp()

	case key.Matches(msg, keys.PgDown):
		m.output.PageDown()

	case key.Matches(msg, keys.Approve):
		if st := m.steps.Selected(); st != nil && st.RequiresApproval && !st.Approved.Known() {
			m.approval.Show(m.sess.ID, m.sess.RunbookTitle, *st)
			m.overlay = overlayApproval
		}

	case key.Matches(msg, keys.Succeed), key.Matches(msg, keys.Fail):
		if st := m.steps.Selected(); st != nil && !st.Completed {
			success := key.Matches(msg, keys.Succeed)
			return m, m.markCmd(st.StepNumber, success)
		}

	case key.Matches(msg, keys.Reopen):
		if st := m.steps.Selected(); st != nil && st.Completed {
			return m, m.reopenCmd(st.StepNumber)
		}
	}
	return m, nil
}

func (m Model) handleApprovalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	decision, cmd := m.approval.Update(msg)
	switch decision {
	case decisionApprove, decisionDeny:
		sessionID := m.approval.sessionID
		stepNumber := m.approval.step.StepNumber
		notes := m.approval.Notes()
		m.approval.Hide()
		m.overlay = overlayNone
		return m, tea.Batch(tea.ClearScreen,
			m.approveCmd(sessionID, stepNumber, decision == decisionApprove, notes, false))
	case decisionCancel:
		m.approval.Hide()
		m.overlay = overlayNone
		return m, tea.ClearScreen
	}
	return m, cmd
}

func (m Model) handleFeedbackKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.feedback.Hide()
		m.overlay = overlayNone
		return m, tea.ClearScreen
	}
	done, fb, cmd := m.feedback.Update(msg)
	if done {
		m.feedback.Hide()
		m.overlay = overlayNone
		mon := m.mon
		return m, tea.Batch(tea.ClearScreen, func() tea.Msg {
			if mon == nil {
				return feedbackSentMsg{}
			}
			return feedbackSentMsg{err: mon.SubmitFeedback(m.ctx, fb)}
		})
	}
	return m, cmd
}

func (m *Model) showSelected() {
	if st := m.steps.Selected(); st != nil {
		m.output.ShowStep(st.StepNumber, st.Output, st.Error)
	}
}

// approveCmd issues an approval decision. Inside the detail view it goes
// through the monitor so the store updates optimistically; from the queue
// it goes straight to the client.
func (m Model) approveCmd(sessionID string, stepNumber int, approve bool, notes string, fromQueue bool) tea.Cmd {
	mon := m.mon
	return func() tea.Msg {
		var err error
		if !fromQueue && mon != nil {
			err = mon.Approve(m.ctx, stepNumber, approve, notes)
		} else {
			err = m.client.ApproveStep(m.ctx, sessionID, stepNumber, approve, notes)
		}
		return actionDoneMsg{err: err, refresh: fromQueue}
	}
}

func (m Model) markCmd(stepNumber int, success bool) tea.Cmd {
	mon := m.mon
	return func() tea.Msg {
		return actionDoneMsg{err: mon.SetStepResult(m.ctx, stepNumber, success, "")}
	}
}

func (m Model) reopenCmd(stepNumber int) tea.Cmd {
	mon := m.mon
	return func() tea.Msg {
		return actionDoneMsg{err: mon.ReopenStep(m.ctx, stepNumber)}
	}
}

// --- Layout and rendering ---

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	headerH := 1
	detailH := 7
	mainH := m.height - headerH - detailH
	if mainH < 4 {
		mainH = 4
	}

	stepsW := m.width * 30 / 100
	if stepsW < 25 {
		stepsW = 25
	}
	if stepsW > 45 {
		stepsW = 45
	}
	m.steps.width = stepsW
	m.steps.height = mainH
	m.output.SetSize(m.width-stepsW, mainH)
	m.detail.width = m.width

	listH := m.height - headerH - 2
	if listH < 4 {
		listH = 4
	}
	m.dashboard.width = m.width
	m.dashboard.height = listH
	m.queue.width = m.width
	m.queue.height = listH
}

// View renders the console.
func (m Model) View() string {
	switch m.overlay {
	case overlayApproval:
		return m.approval.View()
	case overlayFeedback:
		return m.feedback.View()
	}

	header := m.renderHeader()

	switch m.view {
	case viewDashboard:
		return header + "\n" + m.dashboard.View() + "\n" +
			keyBarStyle.Render(keyBarText(viewDashboard, m.overlay))
	case viewQueue:
		return header + "\n" + m.queue.View() + "\n" +
			keyBarStyle.Render(keyBarText(viewQueue, m.overlay))
	}

	if m.unavailable {
		body := errorStyle.Render(fmt.Sprintf("Session %s is no longer available.", m.openID)) +
			"\n\n" + keyDescStyle.Render("esc returns to the dashboard")
		return header + "\n\n" + body
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top, m.steps.View(), m.output.View())
	detail := m.detail.View(m.steps.Selected(), m.elapsed, viewDetail, m.overlay, m.notice)
	return header + "\n" + main + "\n" + detail
}

// renderHeader builds the top header line.
func (m Model) renderHeader() string {
	title := headerStyle.Render("remex")

	var left, right string
	switch m.view {
	case viewDashboard:
		left = title + " " + detailValueStyle.Render("sessions")
		right = keyDescStyle.Render(fmt.Sprintf("%d sessions", len(m.dashboard.sessions)))
	case viewQueue:
		left = title + " " + detailValueStyle.Render("approval queue")
		right = keyDescStyle.Render(fmt.Sprintf("%d waiting", len(m.queue.pending)))
	default:
		name := m.sess.RunbookTitle
		if name == "" {
			name = m.openID
		}
		left = title + " " + detailValueStyle.Render(name) + "  " +
			statusStyle(m.sess.Status).Render(string(m.sess.Status))
		right = fmt.Sprintf("%.0f%%  %s", reconcile.Progress(m.sess), m.connBadge())
		if m.sess.Status == model.StatusInProgress {
			right = m.spinner.View() + " " + right
		}
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + right
}

// connBadge renders the live/polling/disconnected indicator. It is purely
// informational: the model keeps reconciling from snapshots regardless.
func (m Model) connBadge() string {
	if m.mon == nil {
		return ""
	}
	switch {
	case m.mon.Live():
		return liveBadgeStyle.Render(GlyphLive + " live")
	case m.mon.PollFailures() > 0:
		return offlineBadgeStyle.Render(fmt.Sprintf("%s disconnected (%d)", GlyphPolling, m.mon.PollFailures()))
	default:
		return pollingBadgeStyle.Render(GlyphPolling + " polling")
	}
}
