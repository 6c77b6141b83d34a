package cli

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33")). // Blue
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // Gray

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160")) // Red

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")). // Orange
			MarginLeft(2)

	catStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true).
			MarginTop(1)

	passedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("40"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("160"))

	skippedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dirStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)
)
