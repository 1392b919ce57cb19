package monitor

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/roster/internal/gate"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	subtleStyle = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle  = lipgloss.NewStyle().Foreground(errorColor)

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			MarginTop(1)

	tabStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	adminBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(warningColor).
			Padding(0, 1)

	modeStyles = map[gate.Kind]lipgloss.Style{
		gate.Ready:            lipgloss.NewStyle().Foreground(successColor),
		gate.Loading:          lipgloss.NewStyle().Foreground(warningColor),
		gate.AuthInitializing: lipgloss.NewStyle().Foreground(warningColor),
		gate.AuthError:        lipgloss.NewStyle().Foreground(errorColor),
		gate.LoadError:        lipgloss.NewStyle().Foreground(errorColor),
	}
)

// formatMode renders a mode with its color.
func formatMode(m gate.Mode) string {
	style, ok := modeStyles[m.Kind]
	if !ok {
		style = subtleStyle
	}
	return style.Render(m.String())
}
