package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	header    lipgloss.Style
	query     lipgloss.Style
	stepDone  lipgloss.Style
	stepRun   lipgloss.Style
	stepMeta  lipgloss.Style
	answer    lipgloss.Style
	citation  lipgloss.Style
	errText   lipgloss.Style
	statusBar lipgloss.Style
	partial   lipgloss.Style
}

func newStyles() styles {
	return styles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		query:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		stepDone:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		stepRun:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		stepMeta:  lipgloss.NewStyle().Faint(true),
		answer:    lipgloss.NewStyle(),
		citation:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		errText:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		statusBar: lipgloss.NewStyle().Faint(true),
		partial:   lipgloss.NewStyle().Italic(true).Faint(true),
	}
}
