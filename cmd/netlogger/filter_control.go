package main

import (
	"errors"
	"sync"

	"github.com/tinytelemetry/netlogger/internal/filters"
	"github.com/tinytelemetry/netlogger/internal/model"
	"github.com/tinytelemetry/netlogger/internal/tcpserver"
)

type toggler interface {
	Toggle(severity model.Severity, enabled bool) error
}

// filterControl records a toggle in the shared filter set and then pushes it
// to the attached client. The viewer and the HTTP API both go through it.
type filterControl struct {
	mu      sync.Mutex
	filters *filters.Set
	server  toggler
}

func newFilterControl(set *filters.Set) *filterControl {
	return &filterControl{filters: set}
}

// attach must be called before the first SetFilter.
func (c *filterControl) attach(server toggler) {
	c.mu.Lock()
	c.server = server
	c.mu.Unlock()
}

func (c *filterControl) Filters() [model.NumSeverities]bool {
	return c.filters.Snapshot()
}

func (c *filterControl) SetFilter(severity model.Severity, enabled bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.filters.SetEnabled(severity, enabled); err != nil {
		return false, err
	}
	if c.server == nil {
		return false, nil
	}
	err := c.server.Toggle(severity, enabled)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, tcpserver.ErrNotConnected):
		return false, nil
	default:
		return false, err
	}
}
