package main

import "github.com/charmbracelet/lipgloss"

// Centralized style definitions for the TUI.
var (
	// Header.
	titleStyle = lipgloss.NewStyle().Bold(true)
	brandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // magenta

	// Status pill.
	livePillStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("2")) // green
	loadingPillStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("3")) // yellow
	failedPillStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("1")) // red

	// Mode toggle button.
	buttonStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")) // cyan
	buttonDisabledStyle = buttonStyle.
				Foreground(lipgloss.Color("8")).
				BorderForeground(lipgloss.Color("8"))

	// Spinner.
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // magenta

	// General utility styles.
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow

	// Error panel.
	errorTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	errorPanelStyle = lipgloss.NewStyle().
			Padding(0, 1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("1"))
)
