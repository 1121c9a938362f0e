package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/netlogger/internal/model"
	"github.com/tinytelemetry/netlogger/internal/sink"
)

// FilterControl reads and changes the per-severity filter state. SetFilter
// reports whether the change reached an attached client.
type FilterControl interface {
	Filters() [model.NumSeverities]bool
	SetFilter(severity model.Severity, enabled bool) (sent bool, err error)
}

// ViewerConfig holds viewer settings.
type ViewerConfig struct {
	// MaxRows caps the rows kept for display; oldest rows are dropped.
	MaxRows int
	// ListenAddr is shown in the header.
	ListenAddr string
}

type row struct {
	marker   bool
	severity model.Severity
	thread   string
	file     string
	line     string
	message  string
}

// chrome is the number of lines outside the rows viewport: header, filter
// checkboxes, chart, column header, status and help.
const chrome = 5 + chartHeight

// ViewerModel is the bubbletea model of the log viewer.
type ViewerModel struct {
	keys     KeyMap
	filters  FilterControl
	viewport viewport.Model

	rows       []row
	counts     severityCounts
	maxRows    int
	listenAddr string

	remote     string
	connected  bool
	autoScroll bool
	status     string

	width  int
	height int
}

func NewViewerModel(filters FilterControl, conf ...ViewerConfig) *ViewerModel {
	maxRows := model.DefaultLogBuffer
	listenAddr := ""
	if len(conf) > 0 {
		if conf[0].MaxRows > 0 {
			maxRows = conf[0].MaxRows
		}
		listenAddr = conf[0].ListenAddr
	}
	return &ViewerModel{
		keys:       DefaultKeyMap(),
		filters:    filters,
		viewport:   viewport.New(80, 20),
		maxRows:    maxRows,
		listenAddr: listenAddr,
		autoScroll: true,
		status:     "Waiting for a client",
		width:      80,
		height:     20 + chrome,
	}
}

func (m *ViewerModel) Init() tea.Cmd { return nil }

func (m *ViewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chrome, 1)
		m.refresh()
		return m, nil

	case RecordMsg:
		m.counts.add(msg.Record.Severity)
		m.appendRow(row{
			severity: msg.Record.Severity,
			thread:   msg.Record.Thread,
			file:     msg.Record.File,
			line:     strconv.Itoa(int(msg.Record.Line)),
			message:  msg.Record.Message,
		})
		return m, nil

	case DisconnectMsg:
		m.connected = false
		m.remote = ""
		if msg.Normal {
			m.status = "Client disconnected"
		} else {
			m.status = "Client connection lost"
		}
		m.appendRow(row{marker: true, thread: "-", file: "-", line: "-", message: sink.DisconnectLabel})
		return m, nil

	case ConnectMsg:
		m.connected = true
		m.remote = msg.Remote
		m.status = "Client connected"
		m.rows = m.rows[:0]
		m.counts = severityCounts{}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *ViewerModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQuit):
		return tea.Quit
	case key.Matches(msg, m.keys.ToggleDebug):
		m.toggle(model.SeverityDebug)
	case key.Matches(msg, m.keys.ToggleInfo):
		m.toggle(model.SeverityInfo)
	case key.Matches(msg, m.keys.ToggleWarning):
		m.toggle(model.SeverityWarning)
	case key.Matches(msg, m.keys.ToggleError):
		m.toggle(model.SeverityError)
	case key.Matches(msg, m.keys.AutoScroll):
		m.autoScroll = !m.autoScroll
		if m.autoScroll {
			m.viewport.GotoBottom()
		}
	case key.Matches(msg, m.keys.Clear):
		m.rows = m.rows[:0]
		m.refresh()
	case key.Matches(msg, m.keys.Up):
		m.viewport.ScrollUp(1)
		m.autoScroll = false
	case key.Matches(msg, m.keys.Down):
		m.viewport.ScrollDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfPageUp()
		m.autoScroll = false
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfPageDown()
	case key.Matches(msg, m.keys.Home):
		m.viewport.GotoTop()
		m.autoScroll = false
	case key.Matches(msg, m.keys.End):
		m.viewport.GotoBottom()
	}
	return nil
}

func (m *ViewerModel) toggle(severity model.Severity) {
	enabled := !m.filters.Filters()[severity]
	sent, err := m.filters.SetFilter(severity, enabled)
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	switch {
	case err != nil:
		m.status = fmt.Sprintf("%s %s, send failed: %v", severity, state, err)
	case sent:
		m.status = fmt.Sprintf("%s %s", severity, state)
	default:
		m.status = fmt.Sprintf("%s %s (applies to next client)", severity, state)
	}
}

func (m *ViewerModel) appendRow(r row) {
	m.rows = append(m.rows, r)
	if over := len(m.rows) - m.maxRows; over > 0 {
		m.rows = append(m.rows[:0], m.rows[over:]...)
	}
	m.refresh()
}

func (m *ViewerModel) refresh() {
	lines := make([]string, len(m.rows))
	for i, r := range m.rows {
		lines[i] = m.renderRow(r)
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if m.autoScroll {
		m.viewport.GotoBottom()
	}
}

func columns(level, thread, file, line, message string) string {
	return fmt.Sprintf("%-7s  %-12s  %-20s  %5s  %s", level, truncate(thread, 12), truncate(file, 20), line, message)
}

func (m *ViewerModel) renderRow(r row) string {
	if r.marker {
		return markerRowStyle.Render(columns("-", r.thread, r.file, r.line, r.message))
	}
	text := columns(r.severity.String(), r.thread, r.file, r.line, r.message)
	level := fmt.Sprintf("%-7s", r.severity.String())
	return sink.SeverityStyle(r.severity).Render(level) + text[len(level):]
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func (m *ViewerModel) View() string {
	var b strings.Builder

	title := "netlogger"
	if m.listenAddr != "" {
		title += " on " + m.listenAddr
	}
	b.WriteString(headerStyle.Width(m.width).Render(title))
	b.WriteString("\n")

	b.WriteString(m.renderFilters())
	b.WriteString("\n")
	b.WriteString(renderCounts(m.counts, m.width))
	b.WriteString("\n")
	b.WriteString(columnHeaderStyle.Render(columns("Level", "Thread", "File", "Line", "Message")))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m *ViewerModel) renderFilters() string {
	enabled := m.filters.Filters()
	parts := make([]string, 0, len(enabled))
	for _, sev := range model.Severities() {
		box := uncheckedStyle.Render(fmt.Sprintf("[ ] %d %s", int(sev)+1, sev))
		if enabled[sev] {
			box = checkedStyle.Render(fmt.Sprintf("[x] %d %s", int(sev)+1, sev))
		}
		parts = append(parts, box)
	}
	return strings.Join(parts, "  ")
}

func (m *ViewerModel) renderStatus() string {
	conn := disconnectedStyle.Render("● no client")
	if m.connected {
		conn = connectedStyle.Render("● " + m.remote)
	}
	scroll := "auto-scroll off"
	if m.autoScroll {
		scroll = "auto-scroll on"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, conn, "  ", m.status, "  ", helpStyle.Render(scroll))
}

func (m *ViewerModel) renderHelp() string {
	parts := make([]string, 0, len(m.keys.ShortHelp()))
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return helpStyle.Render(strings.Join(parts, " • "))
}

// NewProgram builds the full-screen program for m.
func NewProgram(m *ViewerModel, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
}
