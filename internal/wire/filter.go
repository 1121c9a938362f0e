package wire

import (
	"errors"
	"fmt"

	"github.com/tinytelemetry/netlogger/internal/model"
)

// Control opcodes sent from the server to the logging application.
const (
	OpEnableLevel  byte = 0xEE
	OpDisableLevel byte = 0xDD
)

// FilterPayloadSize is the size of a filter toggle payload.
const FilterPayloadSize = 2

// ErrUnknownControl reports an outbound payload that is not a filter toggle.
var ErrUnknownControl = errors.New("wire: unknown control payload")

// EncodeFilterToggle builds the payload asking the client to enable or
// disable severity. There is no acknowledgement.
func EncodeFilterToggle(severity model.Severity, enabled bool) ([]byte, error) {
	if !severity.Known() {
		return nil, fmt.Errorf("wire: cannot toggle severity %d", severity)
	}
	op := OpDisableLevel
	if enabled {
		op = OpEnableLevel
	}
	return []byte{op, byte(severity)}, nil
}

// DecodeFilterToggle parses a filter toggle payload. The severity byte is
// returned as received; the logging side decides what to do with codes it
// does not know.
func DecodeFilterToggle(payload []byte) (model.Severity, bool, error) {
	if len(payload) < FilterPayloadSize {
		return 0, false, fmt.Errorf("%w: %d bytes", ErrUnknownControl, len(payload))
	}
	switch payload[0] {
	case OpEnableLevel:
		return model.Severity(payload[1]), true, nil
	case OpDisableLevel:
		return model.Severity(payload[1]), false, nil
	default:
		return 0, false, fmt.Errorf("%w: opcode 0x%02x", ErrUnknownControl, payload[0])
	}
}
