package model

import "strconv"

// Severity is the level byte carried by every record on the wire.
// Values outside Debug..Error are kept as-is so they can still be shown.
type Severity uint8

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

// NumSeverities is the number of severities that can be filtered.
const NumSeverities = 4

// UnknownSeverityLabel is displayed for severity codes outside 0-3.
const UnknownSeverityLabel = "???"

var severityLabels = [NumSeverities]string{"Debug", "Info", "Warning", "Error"}

// Severities lists the filterable severities in wire order.
func Severities() []Severity {
	return []Severity{SeverityDebug, SeverityInfo, SeverityWarning, SeverityError}
}

// Known reports whether s is one of Debug, Info, Warning or Error.
func (s Severity) Known() bool {
	return s < NumSeverities
}

// String returns the display label, "???" for unrecognised codes.
func (s Severity) String() string {
	if !s.Known() {
		return UnknownSeverityLabel
	}
	return severityLabels[s]
}

// Code returns the raw numeric value as text, used where the label is "???".
func (s Severity) Code() string {
	return strconv.Itoa(int(s))
}

// LogRecord is one event received from the remote application.
// It is produced by the record decoder and passed around by value.
type LogRecord struct {
	Severity Severity
	Thread   string
	File     string
	Line     uint16
	Message  string
}
