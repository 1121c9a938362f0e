package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/netlogger/internal/model"
)

// RecordMsg carries one decoded record into the UI loop.
type RecordMsg struct{ Record model.LogRecord }

// DisconnectMsg reports the end of a client session.
type DisconnectMsg struct{ Normal bool }

// ConnectMsg reports a newly attached client.
type ConnectMsg struct{ Remote string }

// Sender is the part of *tea.Program the sink needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Sink forwards collector events to the bubbletea program so that all view
// state is mutated on the UI goroutine.
type Sink struct {
	program Sender
}

func NewSink(program Sender) *Sink {
	return &Sink{program: program}
}

func (s *Sink) OnRecord(record model.LogRecord) { s.program.Send(RecordMsg{Record: record}) }
func (s *Sink) OnDisconnect(normal bool)        { s.program.Send(DisconnectMsg{Normal: normal}) }
func (s *Sink) OnConnect(remote string)         { s.program.Send(ConnectMsg{Remote: remote}) }
