package sink

import (
	"context"
	"sync"

	"github.com/tinytelemetry/netlogger/internal/model"
)

// DefaultQueueSize is the default buffer of a Queue.
const DefaultQueueSize = 10_000

// Queue hands events from the network goroutine to a single consumer through
// a buffered channel. A full queue applies backpressure to the reader, which
// in turn backs up into the client's TCP window; nothing is dropped.
type Queue struct {
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewQueue(parent context.Context, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(parent)
	return &Queue{
		ctx:    ctx,
		cancel: cancel,
		events: make(chan Event, size),
	}
}

func (q *Queue) OnRecord(record model.LogRecord) { q.push(recordEvent(record)) }
func (q *Queue) OnDisconnect(normal bool)        { q.push(disconnectEvent(normal)) }
func (q *Queue) OnConnect(remote string)         { q.push(connectEvent(remote)) }

// Events is closed by Close.
func (q *Queue) Events() <-chan Event {
	return q.events
}

// Close stops accepting events and closes the channel. Events already queued
// can still be drained.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.cancel()
		q.mu.Lock()
		q.closed = true
		close(q.events)
		q.mu.Unlock()
	})
}

func (q *Queue) push(ev Event) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.events <- ev:
	case <-q.ctx.Done():
	}
}
