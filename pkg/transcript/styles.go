package transcript

import "github.com/charmbracelet/lipgloss"

type styles struct {
	round     lipgloss.Style
	section   lipgloss.Style
	panelist  lipgloss.Style
	candidate lipgloss.Style
	monitor   lipgloss.Style
	evaluator lipgloss.Style
	content   lipgloss.Style
	fallback  lipgloss.Style
	code      lipgloss.Style
	score     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		round:     r.NewStyle().Bold(true).Underline(true),
		section:   r.NewStyle().Foreground(lipgloss.Color("241")),
		panelist:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		candidate: r.NewStyle().Bold(true).Foreground(lipgloss.Color("114")),
		monitor:   r.NewStyle().Foreground(lipgloss.Color("180")),
		evaluator: r.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
		content:   r.NewStyle().Foreground(lipgloss.Color("252")),
		fallback:  r.NewStyle().Faint(true).Italic(true),
		code:      r.NewStyle().Foreground(lipgloss.Color("245")),
		score:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	}
}
