package model

import "time"

// Shared defaults used by the server binary and the emitter.
const (
	DefaultPort       = 1234
	DefaultCloseGrace = 1 * time.Second
	DefaultLogBuffer  = 5000
)
