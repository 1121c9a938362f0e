// Package logsource reads plain text lines for the emitter.
package logsource

// Line is one non-empty input line. Number counts every line read,
// including the skipped empty ones, starting at 1.
type Line struct {
	Number int
	Text   string
}

// LineSource is a stream of non-empty text lines.
type LineSource interface {
	Lines() <-chan Line // closed at end of input or after Stop
	Stop()
	Name() string
}
