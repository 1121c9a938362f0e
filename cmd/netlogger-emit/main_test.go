package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tinytelemetry/netlogger/internal/logsource"
	"github.com/tinytelemetry/netlogger/internal/model"
	"github.com/tinytelemetry/netlogger/internal/tcpserver"
)

type lineSource struct {
	ch chan logsource.Line
}

func newLineSource(lines ...logsource.Line) *lineSource {
	s := &lineSource{ch: make(chan logsource.Line, len(lines))}
	for _, l := range lines {
		s.ch <- l
	}
	close(s.ch)
	return s
}

func (s *lineSource) Lines() <-chan logsource.Line { return s.ch }
func (s *lineSource) Stop()                        {}
func (s *lineSource) Name() string                 { return "test" }

type collectingSink struct {
	mu      sync.Mutex
	records []model.LogRecord
}

func (s *collectingSink) OnRecord(r model.LogRecord) {
	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()
}

func (s *collectingSink) OnDisconnect(bool) {}

func (s *collectingSink) snapshot() []model.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LogRecord(nil), s.records...)
}

func TestEmit_StreamsLinesWithSeverity(t *testing.T) {
	t.Parallel()

	sink := &collectingSink{}
	srv := tcpserver.NewServer("127.0.0.1:0", sink, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start(): %v", err)
	}
	defer srv.Stop()

	src := newLineSource(
		logsource.Line{Number: 1, Text: "service started"},
		logsource.Line{Number: 3, Text: "WARN disk almost full"},
		logsource.Line{Number: 4, Text: "ERROR write failed"},
	)
	err := emit(context.Background(), emitConfig{Addr: srv.Addr(), Thread: "pipe", File: "/var/log/app.log"}, src)
	if err != nil {
		t.Fatalf("emit(): %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for len(sink.snapshot()) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("records = %d, want 3", len(sink.snapshot()))
		}
		time.Sleep(10 * time.Millisecond)
	}

	want := []model.LogRecord{
		{Severity: model.SeverityInfo, Thread: "pipe", File: "app.log", Line: 1, Message: "service started"},
		{Severity: model.SeverityWarning, Thread: "pipe", File: "app.log", Line: 3, Message: "WARN disk almost full"},
		{Severity: model.SeverityError, Thread: "pipe", File: "app.log", Line: 4, Message: "ERROR write failed"},
	}
	got := sink.snapshot()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEmit_DialFailure(t *testing.T) {
	t.Parallel()

	srv := tcpserver.NewServer("127.0.0.1:0", nil, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start(): %v", err)
	}
	addr := srv.Addr()
	_ = srv.Stop()

	err := emit(context.Background(), emitConfig{Addr: addr, ConnectTimeout: 200 * time.Millisecond}, newLineSource())
	if err == nil {
		t.Fatal("emit() error = nil, want dial error")
	}
}
