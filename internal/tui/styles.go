package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorNavy  = lipgloss.Color("17")
	ColorWhite = lipgloss.Color("15")
	ColorGray  = lipgloss.Color("244")
	ColorGreen = lipgloss.Color("42")
	ColorRed   = lipgloss.Color("196")

	headerStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(ColorWhite).
			Bold(true).
			Padding(0, 1)

	columnHeaderStyle = lipgloss.NewStyle().Foreground(ColorWhite).Bold(true)
	helpStyle         = lipgloss.NewStyle().Foreground(ColorGray)
	markerRowStyle    = lipgloss.NewStyle().Italic(true).Foreground(ColorGray)
	connectedStyle    = lipgloss.NewStyle().Foreground(ColorGreen)
	disconnectedStyle = lipgloss.NewStyle().Foreground(ColorRed)
	checkedStyle      = lipgloss.NewStyle().Foreground(ColorWhite).Bold(true)
	uncheckedStyle    = lipgloss.NewStyle().Foreground(ColorGray)
)
