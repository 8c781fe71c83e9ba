// Package viewer is the interactive dashboard for an attached gateway.
//
// The dashboard owns the engine's clock: every tick message runs one engine
// tick on the bubbletea goroutine, so the engine and the view never race.
package viewer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/timvw/pane-gateway/internal/model"
)

// Engine is the part of the gateway the dashboard drives.
type Engine interface {
	Tick(ctx context.Context) bool
	SetClientSize(cols, rows int)
	SendInput(input string) error
	Submit(text string) error
	Split(horizontal bool) error
	KillFocused() error
	SelectPane(pane model.PaneID) error
	SelectTab(id model.TabID) error
	Snapshot(content bool) model.StateSnapshot
}

// chromeRows are the dashboard rows not available to tmux: header, summary
// and status line.
const chromeRows = 3

// tabColumnWidth is the width of the tab list.
const tabColumnWidth = 30

// view mode
type viewMode int

const (
	modeTabs viewMode = iota
	modeInput
)

// messages
type tickMsg struct{}

type exitedMsg struct{}

// Dashboard runs the interactive gateway view.
type Dashboard struct {
	Engine   Engine
	Interval time.Duration
	Theme    Theme
	// Done ends the dashboard once closed (the control client went away).
	Done  <-chan struct{}
	RunID string
}

type dashModel struct {
	engine   Engine
	ctx      context.Context
	interval time.Duration
	done     <-chan struct{}
	st       styles
	runID    string

	snap   model.StateSnapshot
	cursor int // index into snap.Tabs
	mode   viewMode
	input  textinput.Model

	// dimensions
	width  int
	height int

	message string
	ticks   int
	exited  bool
}

// Run blocks until the user quits, ctx is cancelled or Done closes.
func (d *Dashboard) Run(ctx context.Context) error {
	p := tea.NewProgram(newModel(ctx, d), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func newModel(ctx context.Context, d *Dashboard) *dashModel {
	ti := textinput.New()
	ti.Placeholder = "Type input for the focused pane and press Enter..."
	ti.CharLimit = 4096
	ti.Width = 80

	interval := d.Interval
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	return &dashModel{
		engine:   d.Engine,
		ctx:      ctx,
		interval: interval,
		done:     d.Done,
		st:       newStyles(d.Theme),
		runID:    d.RunID,
		input:    ti,
	}
}

func (m *dashModel) Init() tea.Cmd {
	m.snap = m.engine.Snapshot(true)
	return tea.Batch(m.scheduleTick(), m.waitDone())
}

// scheduleTick returns a tea.Cmd that sends a tickMsg after the poll interval.
func (m *dashModel) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *dashModel) waitDone() tea.Cmd {
	if m.done == nil {
		return nil
	}
	done := m.done
	return func() tea.Msg {
		<-done
		return exitedMsg{}
	}
}

func (m *dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if rows := msg.Height - chromeRows; msg.Width > 0 && rows > 0 {
			m.engine.SetClientSize(msg.Width, rows)
		}
		return m, nil

	case tickMsg:
		m.tick()
		return m, m.scheduleTick()

	case exitedMsg:
		// one last tick applies the session teardown
		m.tick()
		m.exited = true
		m.message = "tmux control client exited"
		return m, tea.Quit
	}

	return m, nil
}

func (m *dashModel) tick() {
	m.ticks++
	m.engine.Tick(m.ctx)
	m.snap = m.engine.Snapshot(true)
	if m.cursor >= len(m.snap.Tabs) {
		m.cursor = len(m.snap.Tabs) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *dashModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeTabs:
		return m.handleTabsKey(msg)
	case modeInput:
		return m.handleInputKey(msg)
	}
	return m, nil
}

func (m *dashModel) handleTabsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.snap.Tabs)-1 {
			m.cursor++
		}

	case "i", "t":
		m.mode = modeInput
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink

	case "enter":
		if t, ok := m.selectedTab(); ok {
			m.report(m.engine.SelectTab(t.ID), "Selected "+t.Title)
		}

	case "o":
		m.cyclePane()

	case "|":
		m.report(m.engine.Split(true), "Split side by side")

	case "-":
		m.report(m.engine.Split(false), "Split stacked")

	case "x":
		m.report(m.engine.KillFocused(), "Closed focused pane")

	case "C":
		m.send("C-c")
	}

	return m, nil
}

func (m *dashModel) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeTabs
		m.input.Blur()
		return m, nil

	case "ctrl+c":
		m.send("C-c")
		return m, nil

	case "enter":
		text := m.input.Value()
		if err := m.engine.Submit(text); err != nil {
			m.message = fmt.Sprintf("Send failed: %v", err)
		} else {
			m.message = fmt.Sprintf("Sent '%s'", truncate(text, 40))
		}
		m.input.SetValue("")
		return m, nil
	}

	// Forward all other keys to the text input component
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *dashModel) send(keys string) {
	if err := m.engine.SendInput(keys); err != nil {
		m.message = fmt.Sprintf("Send failed: %v", err)
		return
	}
	m.message = "Sent " + keys
}

// report sets the status line from the outcome of an engine action.
func (m *dashModel) report(err error, ok string) {
	if err != nil {
		m.message = fmt.Sprintf("Failed: %v", err)
		return
	}
	m.message = ok
}

// cyclePane selects the tmux pane after the focused one in the selected tab.
func (m *dashModel) cyclePane() {
	t, ok := m.selectedTab()
	if !ok {
		return
	}
	var ids []model.PaneID
	next := 0
	for _, p := range t.Panes {
		if p.TmuxID == nil {
			continue
		}
		if p.Focused {
			next = len(ids) + 1
		}
		ids = append(ids, *p.TmuxID)
	}
	if len(ids) == 0 {
		return
	}
	pane := ids[next%len(ids)]
	m.report(m.engine.SelectPane(pane), "Selected "+pane.String())
}

func (m *dashModel) selectedTab() (model.TabSnapshot, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Tabs) {
		return model.TabSnapshot{}, false
	}
	return m.snap.Tabs[m.cursor], true
}

func (m *dashModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n")

	bodyHeight := m.height - chromeRows
	if m.mode == modeInput {
		bodyHeight -= 2
	}
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	left := m.viewTabs(bodyHeight)
	right := m.viewDetail(m.width-tabColumnWidth-2, bodyHeight)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")

	if m.mode == modeInput {
		b.WriteString(m.st.dim.Render("  Enter=send  Ctrl+C=interrupt  Esc=back"))
		b.WriteString("\n  ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	b.WriteString(m.st.dim.Render(m.summary()))
	b.WriteString("\n")
	if status := m.status(); status != "" {
		b.WriteString(status)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *dashModel) viewHeader() string {
	var b strings.Builder
	b.WriteString(m.st.title.Render("pane-gateway"))
	b.WriteString("  ")
	session := m.snap.Session
	if session == "" {
		session = "-"
	}
	b.WriteString(m.st.text.Render(session))
	b.WriteString(" ")
	b.WriteString(m.st.stateStyle(m.snap.GatewayState).Render(m.snap.GatewayState))
	if m.snap.Paused {
		b.WriteString(" ")
		b.WriteString(m.st.warn.Render("paused"))
	}
	b.WriteString("  ")
	if m.mode == modeTabs {
		b.WriteString(m.st.dim.Render("↑↓=tab  enter=select  o=pane  |/-=split  x=kill  i=input  C=ctrl-c  q=quit"))
	}
	return b.String()
}

func (m *dashModel) viewTabs(height int) string {
	var lines []string
	for i, t := range m.snap.Tabs {
		label := t.Title
		if t.Window != nil {
			label = fmt.Sprintf("%s %s", t.Window, t.Title)
		}
		marker := "  "
		if t.Active {
			marker = "● "
		}
		row := padRight(truncate(marker+label, tabColumnWidth-1), tabColumnWidth)
		switch {
		case i == m.cursor:
			row = m.st.selected.Render(row)
		case t.Gateway:
			row = m.st.gateway.Render(row)
		default:
			row = m.st.text.Render(row)
		}
		lines = append(lines, row)
		if len(lines) >= height {
			break
		}
	}
	if len(lines) == 0 {
		lines = append(lines, m.st.dim.Render(padRight("  no tabs", tabColumnWidth)))
	}
	return strings.Join(lines, "\n")
}

func (m *dashModel) viewDetail(width, height int) string {
	t, ok := m.selectedTab()
	if !ok || width < 10 {
		return ""
	}

	var lines []string
	var preview []string
	for _, p := range t.Panes {
		id := "-"
		if p.TmuxID != nil {
			id = p.TmuxID.String()
		}
		row := fmt.Sprintf("%-5s %3dx%-3d at %.0f,%.0f", id, p.Cols, p.Rows, p.Bounds.X, p.Bounds.Y)
		if p.Focused {
			lines = append(lines, m.st.focused.Render(row+" *"))
			preview = p.Content
		} else {
			lines = append(lines, m.st.dim.Render(row))
		}
	}
	if t.Gateway {
		lines = append(lines, m.st.gateway.Render("gateway connection"))
		preview = t.Output
	}

	room := height - len(lines) - 1
	if room > 0 && len(preview) > 0 {
		if len(preview) > room {
			preview = preview[len(preview)-room:]
		}
		lines = append(lines, m.st.header.Render(strings.Repeat("─", width-2)))
		for _, l := range preview {
			lines = append(lines, truncate(l, width-2))
		}
	}
	return m.st.preview.Render(strings.Join(lines, "\n"))
}

func (m *dashModel) summary() string {
	panes := 0
	for _, t := range m.snap.Tabs {
		panes += len(t.Panes)
	}
	s := fmt.Sprintf("  %d tabs | %d panes | tick #%d", len(m.snap.Tabs), panes, m.ticks)
	if m.snap.FocusedPane != nil {
		s += " | focus " + m.snap.FocusedPane.String()
	}
	if m.runID != "" {
		s += " | run " + truncate(m.runID, 8)
	}
	return s
}

func (m *dashModel) status() string {
	if m.snap.LastError != "" {
		return m.st.err.Render("  tmux: " + m.snap.LastError)
	}
	if m.message != "" {
		return m.st.dim.Render("  " + m.message)
	}
	return ""
}

// truncate cuts a string to at most maxLen characters.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// padRight pads a string with spaces to reach the desired visible width.
func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}
