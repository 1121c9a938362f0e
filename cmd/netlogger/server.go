package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/netlogger/internal/filters"
	"github.com/tinytelemetry/netlogger/internal/httpserver"
	"github.com/tinytelemetry/netlogger/internal/sink"
	"github.com/tinytelemetry/netlogger/internal/tcpserver"
	"github.com/tinytelemetry/netlogger/internal/tui"
)

// runServer accepts logging clients until a signal, the viewer quitting, or
// close-on-disconnect ends the session.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger(cfg.Headless)
	defer cleanupLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	filterSet := filters.New()
	control := newFilterControl(filterSet)
	ring := sink.NewRing(cfg.LogBuffer)
	sinks := sink.Fanout{ring}

	// Build sink plugins
	var stoppers []StoppableSink
	defer func() {
		for _, s := range stoppers {
			if err := s.Stop(); err != nil {
				log.Printf("server: stopping sink: %v", err)
			}
		}
	}()
	names := make([]string, 0, 2)
	for _, plugin := range buildSinkPlugins(sinkPluginConfig(cfg)) {
		if !plugin.Enabled() {
			continue
		}
		s, err := plugin.Build(ctx)
		if err != nil {
			return err
		}
		stoppers = append(stoppers, s)
		sinks = append(sinks, s)
		names = append(names, plugin.Name())
	}

	var program *tea.Program
	if !cfg.Headless {
		viewer := tui.NewViewerModel(control, tui.ViewerConfig{
			MaxRows:    cfg.LogBuffer,
			ListenAddr: cfg.ListenAddr,
		})
		program = tui.NewProgram(viewer, tea.WithContext(ctx))
		sinks = append(sinks, tui.NewSink(program))
		names = append(names, "viewer")
	}

	srv := tcpserver.NewServer(cfg.ListenAddr, sinks, filterSet, tcpserver.ServerConfig{
		CloseOnDisconnect: cfg.CloseOnDisconnect,
		GraceDelay:        cfg.CloseGrace,
		CloseOnBadFrame:   cfg.CloseOnBadFrame,
		WriteTimeout:      cfg.WriteTimeout,
	})
	control.attach(srv)

	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, srv, control, ring)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		if cfg.Headless {
			fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		}
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	if cfg.Headless {
		printStartupBanner(cfg, srv.Addr(), names)
	}

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-srv.Done():
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if program != nil {
		g.Go(func() error {
			defer cancel()
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
					return fmt.Errorf("terminal viewer requires a real terminal (use --headless)")
				}
				return fmt.Errorf("error running viewer: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		// Stop unblocks the accept loop and closes the client socket; the
		// sinks see their last events before this returns.
		return srv.Stop()
	})

	return g.Wait()
}

func configureRuntimeLogger(headless bool) func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if headless {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "netlogger")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "netlogger.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, listenAddr string, sinks []string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, "    "+cyan.Bold(true).Render("netlogger")+" "+dim.Render("v"+version))
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Log Client     %s", check, cyan.Render(listenAddr)))
	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	if cfg.OTLPEndpoint != "" {
		lines = append(lines, fmt.Sprintf("    %s  OTLP Export    %s", check, cyan.Render(cfg.OTLPEndpoint)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  OTLP Export    %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	// Runtime
	lines = append(lines, bold.Render("    Runtime"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Sinks          %s", check, dim.Render(strings.Join(append([]string{"ring"}, sinks...), ", "))))
	closeMode := "keep listening"
	if cfg.CloseOnDisconnect {
		closeMode = "exit " + cfg.CloseGrace.String() + " after disconnect"
	}
	lines = append(lines, fmt.Sprintf("    %s  On Disconnect  %s", check, dim.Render(closeMode)))

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
