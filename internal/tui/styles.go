// Package tui provides terminal output and the monitor dashboard for branchsync.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Colors
var (
	ColorPrimary   = lipgloss.Color("39")  // Blue
	ColorSecondary = lipgloss.Color("245") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorDanger    = lipgloss.Color("196") // Red
	ColorMuted     = lipgloss.Color("240") // Dark gray
)

// Styles for console output and the dashboard
var (
	// Title style for the header
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(0, 1)

	NormalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Padding(0, 1)

	// Progress lines: checkout, pull, push
	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// Abort and fatal messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorDanger).
			Bold(true)

	VerboseStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// Status styles
	StatusSucceeded = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	StatusFailed = lipgloss.NewStyle().
			Foreground(ColorDanger).
			Bold(true)

	StatusRunning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StatusInactive = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// Help bar style
	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Padding(1, 0)

	// Detail label style
	LabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary).
			Width(14)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))
)

// GetStatusStyle returns the style for a run status or step outcome.
func GetStatusStyle(status string) lipgloss.Style {
	switch status {
	case "succeeded", "clean", "resolved", "pushed":
		return StatusSucceeded
	case "failed", "aborted":
		return StatusFailed
	case "running", "conflict":
		return StatusRunning
	case "interrupted", "up-to-date":
		return StatusInactive
	default:
		return NormalStyle
	}
}

// GetStatusIcon returns an icon for a run status or step outcome.
func GetStatusIcon(status string) string {
	switch status {
	case "succeeded", "clean":
		return "●"
	case "resolved":
		return "◆"
	case "failed":
		return "✗"
	case "aborted":
		return "↩"
	case "running":
		return "◐"
	case "interrupted":
		return "⚠"
	case "up-to-date":
		return "○"
	default:
		return "?"
	}
}
