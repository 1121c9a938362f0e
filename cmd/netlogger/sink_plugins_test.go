package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/netlogger/internal/model"
)

func TestBuildSinkPlugins_RegistersPrimitives(t *testing.T) {
	t.Parallel()

	plugins := buildSinkPlugins(SinkPluginConfig{Headless: true})

	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}
	if plugins[0].Name() != "console" {
		t.Fatalf("plugins[0] name = %q, want %q", plugins[0].Name(), "console")
	}
	if plugins[1].Name() != "otlp" {
		t.Fatalf("plugins[1] name = %q, want %q", plugins[1].Name(), "otlp")
	}
	if !plugins[0].Enabled() {
		t.Fatal("expected console plugin to be enabled when Headless=true")
	}
	if plugins[1].Enabled() {
		t.Fatal("expected otlp plugin to be disabled without an endpoint")
	}
}

func TestBuildSinkPlugins_ViewerMode(t *testing.T) {
	t.Parallel()

	plugins := buildSinkPlugins(SinkPluginConfig{OTLPEndpoint: "localhost:4317"})
	if plugins[0].Enabled() {
		t.Fatal("expected console plugin to be disabled when the viewer runs")
	}
	if !plugins[1].Enabled() {
		t.Fatal("expected otlp plugin to be enabled with an endpoint")
	}
}

func TestConsoleSinkPlugin_PrintsUntilStopped(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	plugin := consoleSinkPlugin{enabled: true, queueSize: 8, out: &buf}
	s, err := plugin.Build(context.Background())
	if err != nil {
		t.Fatalf("Build(): %v", err)
	}

	s.OnRecord(model.LogRecord{Severity: model.SeverityError, Thread: "T1", File: "a.c", Line: 3, Message: "boom"})
	s.OnDisconnect(true)

	done := make(chan error, 1)
	go func() { done <- s.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop(): %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}

	out := buf.String()
	if !strings.Contains(out, "Error  \tT1\ta.c\t3\tboom") {
		t.Fatalf("output %q missing record row", out)
	}
	if !strings.Contains(out, "Client disconnected.") {
		t.Fatalf("output %q missing disconnect row", out)
	}
}

func TestOTLPSinkPlugin_Build(t *testing.T) {
	t.Parallel()

	plugin := otlpSinkPlugin{}
	plugin.conf.Endpoint = "passthrough:///unused"
	s, err := plugin.Build(context.Background())
	if err != nil {
		t.Fatalf("Build(): %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop(): %v", err)
	}
}
