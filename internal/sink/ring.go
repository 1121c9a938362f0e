package sink

import (
	"sync"

	"github.com/tinytelemetry/netlogger/internal/model"
)

// Ring keeps the most recent events in a fixed-size circular buffer.
type Ring struct {
	mu    sync.RWMutex
	items []Event
	start int
	size  int
	total uint64
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = model.DefaultLogBuffer
	}
	return &Ring{items: make([]Event, capacity)}
}

func (r *Ring) OnRecord(record model.LogRecord) { r.Append(recordEvent(record)) }
func (r *Ring) OnDisconnect(normal bool)        { r.Append(disconnectEvent(normal)) }

func (r *Ring) Append(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := (r.start + r.size) % len(r.items)
	r.items[idx] = ev
	r.total++
	if r.size < len(r.items) {
		r.size++
		return
	}
	r.start = (r.start + 1) % len(r.items)
}

// Recent returns up to limit of the newest events, oldest first. A
// non-positive limit returns everything held.
func (r *Ring) Recent(limit int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := r.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, n)
	offset := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.items[(r.start+offset+i)%len(r.items)]
	}
	return out
}

func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Total counts every event ever appended, including evicted ones.
func (r *Ring) Total() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		r.items[i] = Event{}
	}
	r.start = 0
	r.size = 0
}
