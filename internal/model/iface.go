package model

// Sink receives decoded records and lifecycle events from the network
// goroutine. Calls are synchronous and ordered; implementations that need to
// hand events to another goroutine do so themselves.
type Sink interface {
	OnRecord(record LogRecord)
	OnDisconnect(normal bool)
}

// ConnectObserver is an optional Sink extension notified when a new client
// attaches, before any record of that client is delivered.
type ConnectObserver interface {
	OnConnect(remote string)
}

// FilterSource exposes the current enabled/disabled state of each severity.
type FilterSource interface {
	IsEnabled(severity Severity) bool
}
