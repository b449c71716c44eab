package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	greenColor   = lipgloss.Color("#10B981") // Green
	errorColor   = lipgloss.Color("#F87171") // Red
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
	amberColor   = lipgloss.Color("#F59E0B") // Amber

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	stageStyle = lipgloss.NewStyle().
			Foreground(amberColor)

	okStyle = lipgloss.NewStyle().
		Foreground(greenColor)

	failStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)
