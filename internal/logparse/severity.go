package logparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tinytelemetry/netlogger/internal/model"
)

// SeverityRegex matches common severity levels in log text.
var SeverityRegex = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL)\b`)

// NormalizeSeverity maps the usual spellings of a level onto the four wire
// severities. TRACE folds into Debug and FATAL/CRITICAL/PANIC into Error.
// The second result is false when the name is not recognised.
func NormalizeSeverity(severity string) (model.Severity, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "TRACE", "TRAC", "TRC", "DEBUG", "DEBU", "DBG", "DEB":
		return model.SeverityDebug, true
	case "INFO", "INFORMATION", "INF":
		return model.SeverityInfo, true
	case "WARN", "WARNING", "WRNG", "WRN":
		return model.SeverityWarning, true
	case "ERROR", "ERR", "ERRO", "FATAL", "FATL", "FTL", "CRITICAL", "CRIT", "CRT", "PANIC", "PNC":
		return model.SeverityError, true
	}

	if len(normalized) >= 4 {
		switch normalized[:4] {
		case "DEBU", "TRAC":
			return model.SeverityDebug, true
		case "INFO":
			return model.SeverityInfo, true
		case "WARN":
			return model.SeverityWarning, true
		case "ERRO", "FATA", "CRIT":
			return model.SeverityError, true
		}
	}
	return model.SeverityInfo, false
}

// ParseSeverity accepts either a wire code ("0".."3") or a level name.
func ParseSeverity(s string) (model.Severity, bool) {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		if n < 0 || n >= model.NumSeverities {
			return 0, false
		}
		return model.Severity(n), true
	}
	return NormalizeSeverity(s)
}

// ExtractSeverityFromText finds the first level keyword in a message.
// Lines without one are treated as Info.
func ExtractSeverityFromText(message string) model.Severity {
	matches := SeverityRegex.FindStringSubmatch(message)
	if len(matches) > 1 {
		if sev, ok := NormalizeSeverity(matches[1]); ok {
			return sev
		}
	}
	return model.SeverityInfo
}
