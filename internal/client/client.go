// Package client is the application side of the log protocol: it streams
// records to a collector and honours the filter toggles the collector sends
// back.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/tinytelemetry/netlogger/internal/model"
	"github.com/tinytelemetry/netlogger/internal/wire"
)

const (
	DefaultConnectTimeout = time.Second
	DefaultRetries        = 3
	DefaultRetryDelay     = time.Second
	DefaultWriteTimeout   = 5 * time.Second
)

// ErrClosed is returned by Log after Close.
var ErrClosed = errors.New("client: closed")

// Config holds the connection parameters. Zero fields take the defaults.
type Config struct {
	ConnectTimeout time.Duration
	// Retries is the number of extra connection attempts after the first.
	// Negative disables retrying.
	Retries      int
	RetryDelay   time.Duration
	WriteTimeout time.Duration
	// Thread is sent as the thread name of every record.
	Thread string
}

// Client is safe for concurrent use.
type Client struct {
	conn         net.Conn
	thread       string
	writeTimeout time.Duration

	// filter holds one enable bit per severity code below 32.
	filter atomic.Uint32

	mu     sync.Mutex
	closed bool

	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to a collector at addr, retrying as configured.
func Dial(ctx context.Context, addr string, conf ...Config) (*Client, error) {
	c := Config{}
	if len(conf) > 0 {
		c = conf[0]
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	switch {
	case c.Retries < 0:
		c.Retries = 0
	case c.Retries == 0:
		c.Retries = DefaultRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Thread == "" {
		c.Thread = "main"
	}

	dialer := net.Dialer{Timeout: c.ConnectTimeout}
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return newClient(conn, c), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("client: dial %s after %d attempts: %w", addr, c.Retries+1, lastErr)
}

func newClient(conn net.Conn, c Config) *Client {
	cl := &Client{
		conn:         conn,
		thread:       c.Thread,
		writeTimeout: c.WriteTimeout,
		done:         make(chan struct{}),
	}
	cl.filter.Store(^uint32(0))
	cl.wg.Add(1)
	go func() {
		defer cl.wg.Done()
		defer close(cl.done)
		cl.readLoop()
	}()
	return cl
}

func (c *Client) readLoop() {
	for {
		payload, err := wire.ReadFrame(c.conn)
		if err != nil {
			if errors.Is(err, wire.ErrMalformedFrame) {
				continue
			}
			return
		}
		sev, enabled, err := wire.DecodeFilterToggle(payload)
		if err != nil {
			log.Printf("client: ignoring control frame: %v", err)
			continue
		}
		if sev >= 32 {
			continue
		}
		bit := uint32(1) << uint32(sev)
		for {
			old := c.filter.Load()
			next := old &^ bit
			if enabled {
				next = old | bit
			}
			if c.filter.CompareAndSwap(old, next) {
				break
			}
		}
	}
}

// IsEnabled reports whether records of severity are currently sent.
func (c *Client) IsEnabled(severity model.Severity) bool {
	if severity >= 32 {
		return true
	}
	return c.filter.Load()&(uint32(1)<<uint32(severity)) != 0
}

// Log sends one record. Disabled severities are dropped before encoding and
// return nil. A message that would overflow a frame is truncated.
func (c *Client) Log(severity model.Severity, file string, line int, message string) error {
	if !c.IsEnabled(severity) {
		return nil
	}
	if line < 0 || line > 0xFFFF {
		line = 0
	}
	rec := model.LogRecord{
		Severity: severity,
		Thread:   c.thread,
		File:     Basename(file),
		Line:     uint16(line),
		Message:  message,
	}
	overhead := 1 + 2 + len(rec.Thread) + 2 + len(rec.File) + 2 + 2
	rec.Message = truncate(rec.Message, wire.MaxPayloadSize-overhead)

	payload, err := wire.EncodeRecord(rec)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return wire.WriteFrame(c.conn, payload)
}

// Logf formats and sends a record.
func (c *Client) Logf(severity model.Severity, file string, line int, format string, args ...any) error {
	if !c.IsEnabled(severity) {
		return nil
	}
	return c.Log(severity, file, line, fmt.Sprintf(format, args...))
}

// Done is closed when the collector side of the connection goes away.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close shuts the connection and waits for the control reader to exit.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		err = c.conn.Close()
		c.mu.Unlock()
		c.wg.Wait()
	})
	return err
}

// Basename strips any directory part, accepting both / and \ separators.
func Basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

func truncate(s string, max int) string {
	if max < 0 {
		max = 0
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
