package commands

import (
	"github.com/charmbracelet/lipgloss"

	"agentcfg/internal/reconcile"
)

var (
	// Colors
	colorCreate = lipgloss.Color("#10B981") // Green
	colorUpdate = lipgloss.Color("#F59E0B") // Amber
	colorAppend = lipgloss.Color("#60A5FA") // Blue
	colorMuted  = lipgloss.Color("#6B7280") // Gray
	colorID     = lipgloss.Color("#7C3AED") // Purple

	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	idStyle      = lipgloss.NewStyle().Foreground(colorID).Bold(true)

	statusStyles = map[reconcile.Status]lipgloss.Style{
		reconcile.StatusCreate:    lipgloss.NewStyle().Foreground(colorCreate).Width(9),
		reconcile.StatusUpdate:    lipgloss.NewStyle().Foreground(colorUpdate).Width(9),
		reconcile.StatusAppend:    lipgloss.NewStyle().Foreground(colorAppend).Width(9),
		reconcile.StatusUnchanged: lipgloss.NewStyle().Foreground(colorMuted).Width(9),
	}
)

func renderStatus(s reconcile.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		style = lipgloss.NewStyle().Width(9)
	}
	return style.Render(string(s))
}
