package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/netlogger/internal/model"
	"github.com/tinytelemetry/netlogger/internal/sink"
)

const (
	chartHeight   = 5
	chartBarWidth = 3
	legendWidth   = 22
)

// severityCounts holds per-session record counts. The last slot counts codes
// outside the known range.
type severityCounts [model.NumSeverities + 1]int

func (c *severityCounts) add(s model.Severity) {
	if s.Known() {
		c[s]++
		return
	}
	c[model.NumSeverities]++
}

func (c severityCounts) total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func countLabel(i int) string {
	if i < model.NumSeverities {
		return model.Severity(i).String()
	}
	return model.UnknownSeverityLabel
}

func barStyle(i int) lipgloss.Style {
	fg := sink.SeverityStyle(model.Severity(i)).GetForeground()
	return lipgloss.NewStyle().Foreground(fg).Background(fg)
}

// renderCounts draws one bar per severity with a legend on the right.
func renderCounts(counts severityCounts, width int) string {
	bars := len(counts)
	chartWidth := bars * (chartBarWidth + 1)
	if width > 0 && chartWidth > width-legendWidth {
		chartWidth = max(width-legendWidth, bars*2)
	}

	bc := barchart.New(chartWidth, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(max(chartWidth/bars-1, 1)),
		barchart.WithNoAxis(),
	)
	for i, n := range counts {
		bc.Push(barchart.BarData{
			Label: countLabel(i),
			Values: []barchart.BarValue{
				{Name: countLabel(i), Value: float64(n), Style: barStyle(i)},
			},
		})
	}
	bc.Draw()

	legend := make([]string, 0, len(counts))
	for i, n := range counts {
		label := fmt.Sprintf("%-8s %6d", countLabel(i), n)
		legend = append(legend, sink.SeverityStyle(model.Severity(i)).Render(label))
	}
	if len(counts) < chartHeight {
		legend = append(legend, strings.Repeat(" ", 8)+fmt.Sprintf(" %6d", counts.total()))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, bc.View(), "  ", strings.Join(legend, "\n"))
}
