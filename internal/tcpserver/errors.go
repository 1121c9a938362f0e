package tcpserver

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ErrNotConnected is returned by Send and Toggle while no client is attached.
var ErrNotConnected = errors.New("tcpserver: no client connected")

// BindError reports that the listening socket could not be opened.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("tcpserver: bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// isExpectedCloseError reports errors produced by a peer or local close:
// EOF, closed connection, broken pipe and connection reset.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
