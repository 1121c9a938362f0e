package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/tinytelemetry/netlogger/internal/forward"
	"github.com/tinytelemetry/netlogger/internal/model"
	"github.com/tinytelemetry/netlogger/internal/sink"
)

// StoppableSink is a sink with resources to release on shutdown.
type StoppableSink interface {
	model.Sink
	Stop() error
}

// SinkPlugin is a small plugin primitive for wiring record outputs.
type SinkPlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (StoppableSink, error)
}

// SinkPluginConfig defines runtime output selection.
type SinkPluginConfig struct {
	Headless  bool
	QueueSize int
	Stdout    io.Writer

	OTLPEndpoint      string
	OTLPServiceName   string
	OTLPBatchSize     int
	OTLPFlushInterval time.Duration
}

func sinkPluginConfig(cfg appConfig) SinkPluginConfig {
	return SinkPluginConfig{
		Headless:          cfg.Headless,
		QueueSize:         cfg.QueueSize,
		Stdout:            os.Stdout,
		OTLPEndpoint:      cfg.OTLPEndpoint,
		OTLPServiceName:   cfg.OTLPServiceName,
		OTLPBatchSize:     cfg.OTLPBatchSize,
		OTLPFlushInterval: cfg.OTLPFlushInterval,
	}
}

func buildSinkPlugins(cfg SinkPluginConfig) []SinkPlugin {
	plugins := make([]SinkPlugin, 0, 2)
	plugins = append(plugins, consoleSinkPlugin{
		enabled:   cfg.Headless,
		queueSize: cfg.QueueSize,
		out:       cfg.Stdout,
	})
	plugins = append(plugins, otlpSinkPlugin{
		conf: forward.Config{
			Endpoint:      cfg.OTLPEndpoint,
			ServiceName:   cfg.OTLPServiceName,
			BatchSize:     cfg.OTLPBatchSize,
			FlushInterval: cfg.OTLPFlushInterval,
		},
	})
	return plugins
}

type consoleSinkPlugin struct {
	enabled   bool
	queueSize int
	out       io.Writer
}

func (p consoleSinkPlugin) Name() string { return "console" }

func (p consoleSinkPlugin) Enabled() bool { return p.enabled }

// Build ignores ctx: the queue lives until Stop so that the events the server
// emits while shutting down are still printed.
func (p consoleSinkPlugin) Build(_ context.Context) (StoppableSink, error) {
	out := p.out
	if out == nil {
		out = os.Stdout
	}
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	s := &consoleSink{
		Queue: sink.NewQueue(context.Background(), p.queueSize),
		done:  make(chan struct{}),
	}
	console := sink.NewConsole(out, color)
	go func() {
		defer close(s.done)
		if err := console.Drain(s.Queue); err != nil {
			s.err = err
		}
	}()
	return s, nil
}

// consoleSink prints on its own goroutine so a slow terminal only stalls the
// queue, not the reader.
type consoleSink struct {
	*sink.Queue
	done chan struct{}
	err  error
}

func (s *consoleSink) Stop() error {
	s.Queue.Close()
	<-s.done
	return s.err
}

type otlpSinkPlugin struct {
	conf forward.Config
}

func (p otlpSinkPlugin) Name() string { return "otlp" }

func (p otlpSinkPlugin) Enabled() bool { return p.conf.Endpoint != "" }

func (p otlpSinkPlugin) Build(_ context.Context) (StoppableSink, error) {
	f, err := forward.New(p.conf)
	if err != nil {
		return nil, fmt.Errorf("start otlp forwarder: %w", err)
	}
	f.Start()
	return f, nil
}
