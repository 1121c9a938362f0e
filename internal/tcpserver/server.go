package tcpserver

import (
	"context"
	"errors"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/tinytelemetry/netlogger/internal/model"
	"github.com/tinytelemetry/netlogger/internal/wire"
)

const (
	// Accept errors such as EMFILE are retried with a doubling delay.
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second

	// DefaultWriteTimeout bounds a single outbound control frame write.
	DefaultWriteTimeout = 5 * time.Second
)

// DefaultAddr listens on every interface on the default port.
var DefaultAddr = net.JoinHostPort("", strconv.Itoa(model.DefaultPort))

// State is the lifecycle state of a Server.
type State int

const (
	StateIdle State = iota
	StateListening
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// ServerConfig holds tunable parameters for the TCP server.
type ServerConfig struct {
	// CloseOnDisconnect stops the server GraceDelay after a client
	// disconnects cleanly instead of waiting for the next client.
	CloseOnDisconnect bool
	GraceDelay        time.Duration

	// CloseOnBadFrame ends the session on a frame length violation. By
	// default the violation is logged and the next 4 bytes are read as a
	// new header.
	CloseOnBadFrame bool

	WriteTimeout time.Duration
}

// Server accepts one logging client at a time, decodes its records into a
// Sink and pushes filter toggles back to it.
type Server struct {
	addr              string
	sink              model.Sink
	filters           model.FilterSource
	closeOnDisconnect bool
	closeOnBadFrame   bool
	graceDelay        time.Duration
	writeTimeout      time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once
	stopOnce sync.Once

	mu       sync.Mutex
	listener net.Listener
	state    State
	active   *session
}

// NewServer creates a new TCP server. Default addr is ":1234". A nil filters
// source means every severity is enabled.
func NewServer(addr string, sink model.Sink, filters model.FilterSource, conf ...ServerConfig) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if sink == nil {
		sink = discardSink{}
	}
	if filters == nil {
		filters = allEnabled{}
	}
	graceDelay := model.DefaultCloseGrace
	writeTimeout := DefaultWriteTimeout
	var closeOnDisconnect, closeOnBadFrame bool
	if len(conf) > 0 {
		closeOnDisconnect = conf[0].CloseOnDisconnect
		closeOnBadFrame = conf[0].CloseOnBadFrame
		if conf[0].GraceDelay > 0 {
			graceDelay = conf[0].GraceDelay
		}
		if conf[0].WriteTimeout > 0 {
			writeTimeout = conf[0].WriteTimeout
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:              addr,
		sink:              sink,
		filters:           filters,
		closeOnDisconnect: closeOnDisconnect,
		closeOnBadFrame:   closeOnBadFrame,
		graceDelay:        graceDelay,
		writeTimeout:      writeTimeout,
		ctx:               ctx,
		cancel:            cancel,
		done:              make(chan struct{}),
	}
}

// Start binds the listening socket and begins accepting clients in the
// background. A bind failure is returned as *BindError.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return errors.New("tcpserver: already started")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return &BindError{Addr: s.addr, Err: err}
	}
	s.listener = listener
	s.state = StateListening

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.closeDone()
		s.acceptLoop(listener)
	}()

	log.Printf("tcpserver: listening on %s", listener.Addr())
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	var backoff time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			log.Printf("tcpserver: accept error: %v; retrying in %s", err, backoff)
			select {
			case <-time.After(backoff):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		backoff = 0

		normal, served := s.serve(conn)
		if !served || s.ctx.Err() != nil {
			return
		}

		if normal && s.closeOnDisconnect {
			log.Printf("tcpserver: client disconnected, stopping in %s", s.graceDelay)
			select {
			case <-time.After(s.graceDelay):
			case <-s.ctx.Done():
			}
			s.shutdown()
			return
		}
		s.setState(StateListening)
	}
}

// serve runs one session to completion on the calling goroutine. served is
// false when the server was stopped before the session could attach.
func (s *Server) serve(conn net.Conn) (normal, served bool) {
	sess := newSession(conn, s.writeTimeout)

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		sess.close()
		return false, false
	}
	s.active = sess
	s.state = StateRunning
	s.mu.Unlock()

	log.Printf("tcpserver: client connected from %s", sess.remote)
	if observer, ok := s.sink.(model.ConnectObserver); ok {
		observer.OnConnect(sess.remote)
	}
	s.pushFilters(sess)

	normal, err := sess.readLoop(s.sink, s.closeOnBadFrame)

	s.mu.Lock()
	if s.active == sess {
		s.active = nil
	}
	s.mu.Unlock()
	sess.close()

	switch {
	case normal:
		log.Printf("tcpserver: client %s disconnected", sess.remote)
	case s.ctx.Err() != nil:
		// Stop closed the connection under us.
	case isExpectedCloseError(err):
		log.Printf("tcpserver: connection to %s lost: %v", sess.remote, err)
	default:
		log.Printf("tcpserver: read error from %s: %v", sess.remote, err)
	}
	s.sink.OnDisconnect(normal)
	return normal, true
}

// pushFilters announces every disabled severity to a fresh client.
func (s *Server) pushFilters(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != sess {
		return
	}
	for _, sev := range model.Severities() {
		if s.filters.IsEnabled(sev) {
			continue
		}
		payload, err := wire.EncodeFilterToggle(sev, false)
		if err != nil {
			continue
		}
		if err := sess.write(payload); err != nil {
			log.Printf("tcpserver: push filter %s to %s: %v", sev, sess.remote, err)
			return
		}
	}
}

// Send writes payload as one frame to the attached client.
func (s *Server) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		log.Printf("tcpserver: cannot send, no client connected")
		return ErrNotConnected
	}
	if err := s.active.write(payload); err != nil {
		log.Printf("tcpserver: send to %s: %v", s.active.remote, err)
		return err
	}
	return nil
}

// Toggle asks the attached client to enable or disable severity. The caller
// is expected to have recorded the new state in its FilterSource already so
// that a client attaching later receives it too.
func (s *Server) Toggle(severity model.Severity, enabled bool) error {
	payload, err := wire.EncodeFilterToggle(severity, enabled)
	if err != nil {
		return err
	}
	return s.Send(payload)
}

// Stop closes the listener and the active connection, then waits for the
// accept goroutine to exit. It must not be called from Sink callbacks.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		s.state = StateStopped
		if s.active != nil {
			s.active.close()
			s.active = nil
		}
		listener := s.listener
		s.mu.Unlock()

		if listener != nil {
			_ = listener.Close()
		} else {
			s.closeDone()
		}
	})
	s.wg.Wait()
	return nil
}

// shutdown is the self-initiated stop used by CloseOnDisconnect.
func (s *Server) shutdown() {
	s.cancel()
	s.mu.Lock()
	s.state = StateStopped
	listener := s.listener
	s.mu.Unlock()
	_ = listener.Close()
	log.Printf("tcpserver: stopped after client disconnect")
}

func (s *Server) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Server) setState(state State) {
	s.mu.Lock()
	if s.state != StateStopped {
		s.state = state
	}
	s.mu.Unlock()
}

// Done is closed once the server has stopped accepting, whether through Stop
// or CloseOnDisconnect.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RemoteAddr returns the attached client's address, or "" when none is.
func (s *Server) RemoteAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.remote
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

type discardSink struct{}

func (discardSink) OnRecord(model.LogRecord) {}
func (discardSink) OnDisconnect(bool)        {}

type allEnabled struct{}

func (allEnabled) IsEnabled(model.Severity) bool { return true }
