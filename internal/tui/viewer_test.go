package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/netlogger/internal/model"
	"github.com/tinytelemetry/netlogger/internal/sink"
)

type fakeFilters struct {
	enabled [model.NumSeverities]bool
	sent    bool
	err     error
	calls   []string
}

func newFakeFilters() *fakeFilters {
	return &fakeFilters{enabled: [model.NumSeverities]bool{true, true, true, true}}
}

func (f *fakeFilters) Filters() [model.NumSeverities]bool { return f.enabled }

func (f *fakeFilters) SetFilter(sev model.Severity, enabled bool) (bool, error) {
	state := "off"
	if enabled {
		state = "on"
	}
	f.calls = append(f.calls, sev.String()+":"+state)
	f.enabled[sev] = enabled
	return f.sent, f.err
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func newTestViewer(t *testing.T, conf ...ViewerConfig) (*ViewerModel, *fakeFilters) {
	t.Helper()
	f := newFakeFilters()
	m := NewViewerModel(f, conf...)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, f
}

func TestViewer_AppendsRecordsAndCounts(t *testing.T) {
	t.Parallel()

	m, _ := newTestViewer(t)
	m.Update(ConnectMsg{Remote: "10.0.0.2:5555"})
	m.Update(RecordMsg{Record: model.LogRecord{Severity: model.SeverityWarning, Thread: "T1", File: "a.c", Line: 42, Message: "boom"}})
	m.Update(RecordMsg{Record: model.LogRecord{Severity: model.Severity(9), Thread: "T2", File: "b.c", Line: 1, Message: "odd"}})

	if len(m.rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.rows))
	}
	if m.counts[model.SeverityWarning] != 1 || m.counts[model.NumSeverities] != 1 {
		t.Fatalf("counts = %v, want one warning and one unknown", m.counts)
	}
	if !m.connected || m.remote != "10.0.0.2:5555" {
		t.Fatalf("connected = %v remote = %q", m.connected, m.remote)
	}

	view := m.View()
	for _, want := range []string{"boom", "odd", "???", "10.0.0.2:5555"} {
		if !strings.Contains(view, want) {
			t.Fatalf("View() missing %q", want)
		}
	}
}

func TestViewer_DisconnectAppendsMarker(t *testing.T) {
	t.Parallel()

	m, _ := newTestViewer(t)
	m.Update(ConnectMsg{Remote: "peer"})
	m.Update(RecordMsg{Record: model.LogRecord{Message: "last words"}})
	m.Update(DisconnectMsg{Normal: true})

	if len(m.rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.rows))
	}
	marker := m.rows[1]
	if !marker.marker || marker.message != sink.DisconnectLabel || marker.thread != "-" || marker.file != "-" || marker.line != "-" {
		t.Fatalf("marker row = %+v", marker)
	}
	if m.connected {
		t.Fatal("connected = true after disconnect")
	}
	if !strings.Contains(m.View(), sink.DisconnectLabel) {
		t.Fatalf("View() missing %q", sink.DisconnectLabel)
	}
}

func TestViewer_ConnectClearsRows(t *testing.T) {
	t.Parallel()

	m, _ := newTestViewer(t)
	m.Update(RecordMsg{Record: model.LogRecord{Message: "old"}})
	m.Update(DisconnectMsg{Normal: false})
	m.Update(ConnectMsg{Remote: "next"})

	if len(m.rows) != 0 {
		t.Fatalf("rows = %d after new client, want 0", len(m.rows))
	}
	if m.counts.total() != 0 {
		t.Fatalf("counts total = %d, want 0", m.counts.total())
	}
}

func TestViewer_MaxRows(t *testing.T) {
	t.Parallel()

	m, _ := newTestViewer(t, ViewerConfig{MaxRows: 3})
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		m.Update(RecordMsg{Record: model.LogRecord{Message: msg}})
	}
	if len(m.rows) != 3 || m.rows[0].message != "c" || m.rows[2].message != "e" {
		t.Fatalf("rows = %+v, want c..e", m.rows)
	}
	if m.counts.total() != 5 {
		t.Fatalf("counts total = %d, want 5", m.counts.total())
	}
}

func TestViewer_ToggleKeys(t *testing.T) {
	t.Parallel()

	m, f := newTestViewer(t)
	f.sent = true

	m.Update(runeKey('1'))
	m.Update(runeKey('4'))
	m.Update(runeKey('1'))

	want := "Debug:off,Error:off,Debug:on"
	if got := strings.Join(f.calls, ","); got != want {
		t.Fatalf("SetFilter calls = %q, want %q", got, want)
	}
	if m.status != "Debug enabled" {
		t.Fatalf("status = %q, want %q", m.status, "Debug enabled")
	}
	if !strings.Contains(m.View(), "[ ] 4 Error") {
		t.Fatal("View() does not show Error unchecked")
	}
}

func TestViewer_ToggleWithoutClient(t *testing.T) {
	t.Parallel()

	m, f := newTestViewer(t)
	m.Update(runeKey('2'))
	if f.enabled[model.SeverityInfo] {
		t.Fatal("Info still enabled")
	}
	if !strings.Contains(m.status, "next client") {
		t.Fatalf("status = %q, want note about next client", m.status)
	}

	f.err = errors.New("broken pipe")
	m.Update(runeKey('3'))
	if !strings.Contains(m.status, "broken pipe") {
		t.Fatalf("status = %q, want send error", m.status)
	}
}

func TestViewer_AutoScrollKey(t *testing.T) {
	t.Parallel()

	m, _ := newTestViewer(t)
	if !m.autoScroll {
		t.Fatal("autoScroll = false by default")
	}
	m.Update(runeKey('s'))
	if m.autoScroll {
		t.Fatal("autoScroll = true after s")
	}
	m.Update(runeKey('s'))
	if !m.autoScroll {
		t.Fatal("autoScroll = false after second s")
	}
}

func TestViewer_AutoScrollFollowsTail(t *testing.T) {
	t.Parallel()

	m, _ := newTestViewer(t)
	for i := 0; i < 200; i++ {
		m.Update(RecordMsg{Record: model.LogRecord{Message: "line"}})
	}
	if !m.viewport.AtBottom() {
		t.Fatal("viewport not at bottom with auto-scroll on")
	}
}

func TestViewer_Quit(t *testing.T) {
	t.Parallel()

	for _, msg := range []tea.KeyMsg{runeKey('q'), {Type: tea.KeyCtrlC}} {
		m, _ := newTestViewer(t)
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Fatalf("Update(%q) cmd = nil, want quit", msg.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("Update(%q) cmd did not quit", msg.String())
		}
	}
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func TestSink_PostsMessages(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	s := NewSink(sender)
	s.OnConnect("peer")
	s.OnRecord(model.LogRecord{Message: "hi"})
	s.OnDisconnect(true)

	if len(sender.msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(sender.msgs))
	}
	if _, ok := sender.msgs[0].(ConnectMsg); !ok {
		t.Fatalf("msgs[0] = %T, want ConnectMsg", sender.msgs[0])
	}
	if got, ok := sender.msgs[1].(RecordMsg); !ok || got.Record.Message != "hi" {
		t.Fatalf("msgs[1] = %#v, want RecordMsg hi", sender.msgs[1])
	}
	if got, ok := sender.msgs[2].(DisconnectMsg); !ok || !got.Normal {
		t.Fatalf("msgs[2] = %#v, want normal DisconnectMsg", sender.msgs[2])
	}
}

func TestRenderCounts(t *testing.T) {
	t.Parallel()

	var c severityCounts
	c.add(model.SeverityDebug)
	c.add(model.SeverityError)
	c.add(model.SeverityError)
	c.add(model.Severity(200))

	out := renderCounts(c, 100)
	for _, want := range []string{"Debug", "Error", "???"} {
		if !strings.Contains(out, want) {
			t.Fatalf("renderCounts() missing %q", want)
		}
	}
	if c.total() != 4 {
		t.Fatalf("total() = %d, want 4", c.total())
	}
}
