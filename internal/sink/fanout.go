package sink

import "github.com/tinytelemetry/netlogger/internal/model"

// Fanout delivers every event to each sink in order. Sinks that implement
// model.ConnectObserver also receive connect notifications.
type Fanout []model.Sink

func (f Fanout) OnRecord(record model.LogRecord) {
	for _, s := range f {
		s.OnRecord(record)
	}
}

func (f Fanout) OnDisconnect(normal bool) {
	for _, s := range f {
		s.OnDisconnect(normal)
	}
}

func (f Fanout) OnConnect(remote string) {
	for _, s := range f {
		if observer, ok := s.(model.ConnectObserver); ok {
			observer.OnConnect(remote)
		}
	}
}
