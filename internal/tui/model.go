// Package tui renders a terminal monitor for the offline mutation queue.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/hylla/atelier/internal/app"
	"github.com/hylla/atelier/internal/domain"
)

// Service is the slice of the offline manager the monitor drives.
type Service interface {
	Status() app.Status
	Pending() []domain.Record
	Drain(context.Context) (app.DrainReport, error)
	Retry(context.Context) (app.DrainReport, error)
	SetOnline(bool, string) bool
}

// loadedMsg carries one state snapshot read from the service.
type loadedMsg struct {
	status  app.Status
	pending []domain.Record
}

// drainedMsg carries the result of a drain started from the monitor.
type drainedMsg struct {
	report app.DrainReport
	err    error
}

// tickMsg requests a periodic refresh.
type tickMsg time.Time

// Model is the bubbletea model for the sync monitor.
type Model struct {
	svc             Service
	help            help.Model
	keys            keyMap
	status          app.Status
	pending         []domain.Record
	selected        int
	loaded          bool
	draining        bool
	message         string
	width           int
	height          int
	refreshInterval time.Duration
	signalSource    string
	now             func() time.Time
}

// NewModel constructs a monitor over one service.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:             svc,
		help:            h,
		keys:            newKeyMap(),
		message:         "loading...",
		refreshInterval: DefaultRefreshInterval,
		signalSource:    "tui",
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init loads the first snapshot.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update applies one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		firstLoad := !m.loaded
		m.loaded = true
		m.status = msg.status
		m.pending = msg.pending
		m.selected = clamp(m.selected, 0, max(0, len(m.pending)-1))
		if m.message == "loading..." {
			m.message = ""
		}
		if firstLoad {
			return m, m.tickCmd()
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.loadData, m.tickCmd())

	case drainedMsg:
		m.draining = false
		m.message = drainMessage(msg.report, msg.err)
		return m, m.loadData

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	default:
		return m, nil
	}
}

// handleKey maps key presses to monitor actions.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		return m, m.loadData
	case key.Matches(msg, m.keys.drain):
		return m.startDrain(false)
	case key.Matches(msg, m.keys.forceDrain):
		return m.startDrain(true)
	case key.Matches(msg, m.keys.toggleOnline):
		online := !m.status.Connectivity.Online
		if m.svc.SetOnline(online, m.signalSource) {
			m.message = "marked " + onlineLabel(online)
		}
		return m, m.loadData
	case key.Matches(msg, m.keys.moveUp):
		m.selected = clamp(m.selected-1, 0, max(0, len(m.pending)-1))
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selected = clamp(m.selected+1, 0, max(0, len(m.pending)-1))
		return m, nil
	default:
		return m, nil
	}
}

// startDrain runs one drain off the update loop.
func (m Model) startDrain(force bool) (tea.Model, tea.Cmd) {
	if m.draining {
		m.message = "drain already running"
		return m, nil
	}
	m.draining = true
	m.message = "draining..."
	svc := m.svc
	return m, func() tea.Msg {
		var (
			report app.DrainReport
			err    error
		)
		if force {
			report, err = svc.Retry(context.Background())
		} else {
			report, err = svc.Drain(context.Background())
		}
		return drainedMsg{report: report, err: err}
	}
}

// loadData reads one state snapshot.
func (m Model) loadData() tea.Msg {
	return loadedMsg{
		status:  m.svc.Status(),
		pending: m.svc.Pending(),
	}
}

// tickCmd schedules the next refresh, or nil when polling is off.
func (m Model) tickCmd() tea.Cmd {
	if m.refreshInterval <= 0 {
		return nil
	}
	return tea.Tick(m.refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// View renders the monitor.
func (m Model) View() tea.View {
	if !m.loaded {
		v := tea.NewView("loading...")
		v.AltScreen = true
		return v
	}

	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	labelStyle := lipgloss.NewStyle().Foreground(muted)
	messageStyle := lipgloss.NewStyle().Foreground(dim)

	sections := []string{
		titleStyle.Render("atelier sync"),
		"",
		m.renderStatusLine(labelStyle),
	}
	if line := m.renderBackoffLine(labelStyle); line != "" {
		sections = append(sections, line)
	}
	sections = append(sections, "", m.renderPending(labelStyle), "", m.renderLastDrain(labelStyle))
	if strings.TrimSpace(m.message) != "" {
		sections = append(sections, "", messageStyle.Render(m.message))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}

	v := tea.NewView(content + "\n" + helpLine)
	v.AltScreen = true
	return v
}

// renderStatusLine renders connectivity, engine, and queue depth.
func (m Model) renderStatusLine(label lipgloss.Style) string {
	conn := m.status.Connectivity
	badge := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	if conn.Online {
		badge = badge.Foreground(lipgloss.Color("16")).Background(lipgloss.Color("42"))
	} else {
		badge = badge.Foreground(lipgloss.Color("255")).Background(lipgloss.Color("160"))
	}
	parts := []string{
		badge.Render(strings.ToUpper(onlineLabel(conn.Online))),
		label.Render("via ") + valueOr(conn.Source, "startup"),
		label.Render("engine ") + string(m.status.EngineState),
		label.Render("pending ") + fmt.Sprintf("%d/%d", m.status.Pending, m.status.MaxPending),
	}
	if m.status.Dirty {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("unsaved"))
	}
	return strings.Join(parts, "  ")
}

// renderBackoffLine renders the open backoff window, if any.
func (m Model) renderBackoffLine(label lipgloss.Style) string {
	if m.status.BackoffUntil == nil {
		return ""
	}
	wait := m.status.BackoffUntil.Sub(m.now())
	if wait <= 0 {
		return ""
	}
	return label.Render("next retry in ") + wait.Round(time.Second).String()
}

// renderPending renders the queued records oldest first.
func (m Model) renderPending(label lipgloss.Style) string {
	if len(m.pending) == 0 {
		return label.Render("queue empty")
	}
	header := label.Render(fmt.Sprintf("  %-3s %-14s %-12s %-12s %s", "#", "kind", "project", "target", "queued"))
	rows := []string{header}
	selectedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	for idx, rec := range m.pending {
		cursor := "  "
		if idx == m.selected {
			cursor = "> "
		}
		row := fmt.Sprintf("%s%-3d %-14s %-12s %-12s %s",
			cursor,
			idx+1,
			rec.Kind(),
			truncate(rec.ProjectID(), 12),
			truncate(mutationTarget(rec.Mutation), 12),
			rec.EnqueuedAt.Local().Format("15:04:05"),
		)
		if idx == m.selected {
			row = selectedStyle.Render(row)
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

// renderLastDrain renders the most recent drain cycle.
func (m Model) renderLastDrain(label lipgloss.Style) string {
	last := m.status.LastDrain
	if last == nil {
		return label.Render("no drain yet")
	}
	line := fmt.Sprintf("%s %s (%s) applied %d, remaining %d",
		label.Render("last drain"),
		last.Outcome,
		last.Trigger,
		len(last.Applied),
		last.Remaining,
	)
	if last.StoppedOffline {
		line += ", stopped offline"
	}
	if last.Failed() {
		line += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render(
			fmt.Sprintf("%s on %s: %s", last.FailureKind, last.FailedRecordID, last.Error),
		)
	}
	return line
}

// drainMessage summarizes a drain result for the status line.
func drainMessage(report app.DrainReport, err error) string {
	switch {
	case errors.Is(err, app.ErrBackoffActive):
		return "backoff active; press D to drain now"
	case report.ID == "" && err == nil:
		return "queue empty"
	case err != nil && report.ID == "":
		return "drain error: " + err.Error()
	case report.Failed():
		return fmt.Sprintf("drain stopped: %s", report.FailureKind)
	default:
		return fmt.Sprintf("drained %d", len(report.Applied))
	}
}

// mutationTarget returns the entity id a mutation addresses.
func mutationTarget(m domain.Mutation) string {
	switch v := m.(type) {
	case domain.CreateItem:
		return valueOr(v.Item.ID, "(new)")
	case domain.UpdateItem:
		return v.ItemID
	case domain.DeleteItem:
		return v.ItemID
	case domain.CreateRoom:
		return valueOr(v.Room.ID, "(new)")
	case domain.UpdateRoom:
		return v.RoomID
	case domain.DeleteRoom:
		return v.RoomID
	default:
		return ""
	}
}

func onlineLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// truncate shortens s to n runes with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fitLines pads or truncates content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}
