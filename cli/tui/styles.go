// Package tui provides Bubble Tea views for the petframes CLI.
//
// TUI is opt-in (--tui) and renders the same data as the plain output.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#7C3AED")
	ready   = lipgloss.Color("#10B981")
	pending = lipgloss.Color("#F59E0B")
	broken  = lipgloss.Color("#EF4444")
	dim     = lipgloss.Color("#6B7280")
	frame   = lipgloss.Color("#3B82F6")
	bright  = lipgloss.Color("#FFFFFF")
)

var (
	// TitleStyle renders the "character / phase" heading.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)

	// LabelStyle renders the fixed-width label column of a clip line.
	LabelStyle = lipgloss.NewStyle().Foreground(dim).Width(16)

	ValueStyle   = lipgloss.NewStyle().Foreground(bright)
	SuccessStyle = lipgloss.NewStyle().Foreground(ready)
	WarningStyle = lipgloss.NewStyle().Foreground(pending)
	ErrorStyle   = lipgloss.NewStyle().Foreground(broken)

	HelpStyle = lipgloss.NewStyle().Foreground(dim).MarginTop(1)

	// StatBoxStyle frames one counter of the status view. The border color
	// is replaced per box.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(frame).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().Foreground(dim).Align(lipgloss.Center)
	StatValueStyle = lipgloss.NewStyle().Bold(true).Foreground(bright).Align(lipgloss.Center)
)

// StateStyle returns the style for a session status or clip state.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "ready", "completed", "complete":
		return SuccessStyle
	case "downloading", "incomplete":
		return WarningStyle
	case "canceled", "unsupported", "failed", "error":
		return ErrorStyle
	default:
		return ValueStyle
	}
}
