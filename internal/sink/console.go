package sink

import (
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/netlogger/internal/model"
)

var (
	debugStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	markerStyle  = lipgloss.NewStyle().Italic(true).Faint(true)
)

// SeverityStyle returns the color used for a severity label.
func SeverityStyle(s model.Severity) lipgloss.Style {
	switch s {
	case model.SeverityDebug:
		return debugStyle
	case model.SeverityInfo:
		return infoStyle
	case model.SeverityWarning:
		return warningStyle
	case model.SeverityError:
		return errorStyle
	default:
		return unknownStyle
	}
}

// Console prints events as one line each. Columns follow the viewer:
// level, thread, file, line, message.
type Console struct {
	w     io.Writer
	color bool
}

func NewConsole(w io.Writer, color bool) *Console {
	return &Console{w: w, color: color}
}

// Print writes ev. Connect events are not printed; rows are what the viewer
// shows.
func (c *Console) Print(ev Event) error {
	var line string
	switch ev.Kind {
	case EventRecord:
		line = FormatRecord(ev.Record, c.color)
	case EventDisconnect:
		line = FormatDisconnect(c.color)
	default:
		return nil
	}
	_, err := fmt.Fprintln(c.w, line)
	return err
}

// Drain prints every event from q until it is closed. After the first write
// error the remaining events are consumed and discarded so that producers
// never block on a dead console; that error is returned.
func (c *Console) Drain(q *Queue) error {
	var firstErr error
	for ev := range q.Events() {
		if firstErr != nil {
			continue
		}
		if err := c.Print(ev); err != nil {
			log.Printf("sink: console write failed, discarding further output: %v", err)
			firstErr = err
		}
	}
	return firstErr
}

// FormatRecord renders a record as a tab-separated row.
func FormatRecord(r model.LogRecord, color bool) string {
	level := fmt.Sprintf("%-7s", r.Severity.String())
	if color {
		level = SeverityStyle(r.Severity).Render(level)
	}
	return level + "\t" + r.Thread + "\t" + r.File + "\t" + strconv.Itoa(int(r.Line)) + "\t" + r.Message
}

// FormatDisconnect renders the marker row with "-" in every other column.
func FormatDisconnect(color bool) string {
	row := fmt.Sprintf("%-7s\t-\t-\t-\t%s", "-", DisconnectLabel)
	if color {
		return markerStyle.Render(row)
	}
	return row
}
