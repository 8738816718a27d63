package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dusk-indust/onesheet/internal/orchestrator"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// statusStyle colors a progress line by stage status.
func statusStyle(s orchestrator.StageStatus) lipgloss.Style {
	style := lipgloss.NewStyle()
	switch s {
	case orchestrator.StatusCompleted:
		style = style.Foreground(lipgloss.Color("42"))
	case orchestrator.StatusError:
		style = style.Foreground(lipgloss.Color("196"))
	case orchestrator.StatusInProgress:
		style = style.Foreground(lipgloss.Color("39"))
	default:
		style = style.Foreground(lipgloss.Color("240"))
	}
	return style
}

func renderProgress(ev orchestrator.ProgressEvent) string {
	return statusStyle(ev.Status).Render(orchestrator.FormatProgress(ev))
}
