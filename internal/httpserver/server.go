package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/netlogger/internal/logparse"
	"github.com/tinytelemetry/netlogger/internal/model"
	"github.com/tinytelemetry/netlogger/internal/sink"
	"github.com/tinytelemetry/netlogger/internal/tcpserver"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 5000
)

// StatusProvider is the narrow view of the collector the health endpoint
// reports on.
type StatusProvider interface {
	State() tcpserver.State
	RemoteAddr() string
}

// FilterControl reads and changes the per-severity filter state. SetFilter
// reports whether the change reached an attached client.
type FilterControl interface {
	Filters() [model.NumSeverities]bool
	SetFilter(severity model.Severity, enabled bool) (sent bool, err error)
}

// RecordSource returns the most recent display rows.
type RecordSource interface {
	Recent(limit int) []sink.Event
}

// Server provides the HTTP control API of the collector.
type Server struct {
	addr      string
	status    StatusProvider
	filters   FilterControl
	records   RecordSource
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, status StatusProvider, filters FilterControl, records RecordSource) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		status:    status,
		filters:   filters,
		records:   records,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/filters", s.handleFilters)
	r.PUT("/api/filters/:severity", s.handleSetFilter)
	r.GET("/api/records", s.handleRecords)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(c *gin.Context) {
	state := s.status.State()
	remote := s.status.RemoteAddr()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).String(),
		"state":     state.String(),
		"connected": remote != "",
		"remote":    remote,
	})
}

type filterView struct {
	Severity int    `json:"severity"`
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
}

func (s *Server) filterViews() []filterView {
	snapshot := s.filters.Filters()
	out := make([]filterView, 0, len(snapshot))
	for _, sev := range model.Severities() {
		out = append(out, filterView{
			Severity: int(sev),
			Name:     sev.String(),
			Enabled:  snapshot[sev],
		})
	}
	return out
}

func (s *Server) handleFilters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"filters": s.filterViews()})
}

func (s *Server) handleSetFilter(c *gin.Context) {
	severity, ok := logparse.ParseSeverity(c.Param("severity"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown severity " + strconv.Quote(c.Param("severity"))})
		return
	}

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing enabled field"})
		return
	}

	sent, err := s.filters.SetFilter(severity, *req.Enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"severity": int(severity),
		"name":     severity.String(),
		"enabled":  *req.Enabled,
		"sent":     sent,
	})
}

type recordView struct {
	Kind     string    `json:"kind"`
	Severity *int      `json:"severity,omitempty"`
	Level    string    `json:"level"`
	Thread   string    `json:"thread"`
	File     string    `json:"file"`
	Line     string    `json:"line"`
	Message  string    `json:"message"`
	Received time.Time `json:"received"`
}

func toRecordView(ev sink.Event) recordView {
	if ev.Kind == sink.EventDisconnect {
		return recordView{
			Kind:     ev.Kind.String(),
			Level:    "-",
			Thread:   "-",
			File:     "-",
			Line:     "-",
			Message:  sink.DisconnectLabel,
			Received: ev.Received,
		}
	}
	sev := int(ev.Record.Severity)
	return recordView{
		Kind:     ev.Kind.String(),
		Severity: &sev,
		Level:    ev.Record.Severity.String(),
		Thread:   ev.Record.Thread,
		File:     ev.Record.File,
		Line:     strconv.Itoa(int(ev.Record.Line)),
		Message:  ev.Record.Message,
		Received: ev.Received,
	}
}

func (s *Server) handleRecords(c *gin.Context) {
	limit := defaultRecordLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecordLimit)
	}

	events := s.records.Recent(limit)
	rows := make([]recordView, 0, len(events))
	for _, ev := range events {
		if ev.Kind == sink.EventConnect {
			continue
		}
		rows = append(rows, toRecordView(ev))
	}

	c.JSON(http.StatusOK, gin.H{
		"records": rows,
		"count":   len(rows),
	})
}
