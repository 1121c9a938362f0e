// Package sink holds the model.Sink implementations used to hand decoded
// records from the network goroutine to the rest of the process.
package sink

import (
	"time"

	"github.com/tinytelemetry/netlogger/internal/model"
)

// DisconnectLabel is the message shown in the synthetic row appended when a
// client goes away.
const DisconnectLabel = "Client disconnected."

// EventKind distinguishes the entries flowing through a Queue or Ring.
type EventKind uint8

const (
	EventRecord EventKind = iota
	EventDisconnect
	EventConnect
)

func (k EventKind) String() string {
	switch k {
	case EventRecord:
		return "record"
	case EventDisconnect:
		return "disconnect"
	case EventConnect:
		return "connect"
	default:
		return "unknown"
	}
}

// Event is one row of the display stream.
type Event struct {
	Kind     EventKind
	Record   model.LogRecord
	Normal   bool
	Remote   string
	Received time.Time
}

func recordEvent(record model.LogRecord) Event {
	return Event{Kind: EventRecord, Record: record, Received: time.Now()}
}

func disconnectEvent(normal bool) Event {
	return Event{Kind: EventDisconnect, Normal: normal, Received: time.Now()}
}

func connectEvent(remote string) Event {
	return Event{Kind: EventConnect, Remote: remote, Received: time.Now()}
}
