package tcpserver

import (
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/netlogger/internal/model"
	"github.com/tinytelemetry/netlogger/internal/wire"
)

// session owns one accepted connection. Reads happen only on the accept
// goroutine; writes happen under Server.mu.
type session struct {
	conn         net.Conn
	remote       string
	writeTimeout time.Duration
	closeOnce    sync.Once
}

func newSession(conn net.Conn, writeTimeout time.Duration) *session {
	remote := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	return &session{conn: conn, remote: remote, writeTimeout: writeTimeout}
}

func (c *session) write(payload []byte) error {
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return wire.WriteFrame(c.conn, payload)
}

func (c *session) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// readLoop delivers records to sink until the connection ends. It reports
// whether the peer closed the stream (normal) and the error otherwise.
func (c *session) readLoop(sink model.Sink, closeOnBadFrame bool) (bool, error) {
	for {
		payload, err := wire.ReadFrame(c.conn)
		if err != nil {
			switch {
			case errors.Is(err, wire.ErrMalformedFrame):
				log.Printf("tcpserver: %s: %v", c.remote, err)
				if closeOnBadFrame {
					return false, err
				}
				continue
			case errors.Is(err, wire.ErrConnectionClosed):
				return true, nil
			default:
				return false, err
			}
		}

		record, err := wire.DecodeRecord(payload)
		if err != nil {
			log.Printf("tcpserver: %s: dropped frame: %v", c.remote, err)
			continue
		}
		sink.OnRecord(record)
	}
}
