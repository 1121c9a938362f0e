// Package filters holds the per-severity enabled state owned by the UI side.
// The network core only reads it, once per new connection.
package filters

import (
	"fmt"
	"sync"

	"github.com/tinytelemetry/netlogger/internal/model"
)

// Set is a thread-safe set of severity toggles. The zero value is not
// usable; call New. A nil *Set reads as every severity enabled.
type Set struct {
	mu      sync.RWMutex
	enabled [model.NumSeverities]bool
}

// New returns a Set with every severity enabled.
func New() *Set {
	s := &Set{}
	for i := range s.enabled {
		s.enabled[i] = true
	}
	return s
}

// IsEnabled implements model.FilterSource. Unknown severities cannot be
// filtered and always report true.
func (s *Set) IsEnabled(severity model.Severity) bool {
	if s == nil || !severity.Known() {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled[severity]
}

// SetEnabled records the new state of severity.
func (s *Set) SetEnabled(severity model.Severity, enabled bool) error {
	if !severity.Known() {
		return fmt.Errorf("filters: unknown severity %d", severity)
	}
	s.mu.Lock()
	s.enabled[severity] = enabled
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of all toggles indexed by severity.
func (s *Set) Snapshot() [model.NumSeverities]bool {
	if s == nil {
		return [model.NumSeverities]bool{true, true, true, true}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}
