// Package transcript renders the live interview to a terminal.
package transcript

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"interviewsim/pkg/orchestrator"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/proto"
)

// Printer writes every observed turn to w. It implements orchestrator.Observer.
type Printer struct {
	w      io.Writer
	styles styles

	mu        sync.Mutex
	round     plan.Round
	heading   string
	lastCode  string
	lastScore *float64
}

// NewPrinter creates a printer. Colours are used only when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styles: newStyles(lipgloss.NewRenderer(w))}
}

// OnTurn implements orchestrator.Observer.
func (p *Printer) OnTurn(ev orchestrator.TurnEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	if ev.Round != p.round {
		p.round = ev.Round
		p.heading = ""
		fmt.Fprintf(&b, "\n%s\n", p.styles.round.Render(strings.ToUpper(string(ev.Round))+" ROUND"))
	}
	if heading := sectionHeading(ev); heading != "" && heading != p.heading {
		p.heading = heading
		fmt.Fprintf(&b, "%s\n", p.styles.section.Render("── "+heading))
	}

	name := p.speakerStyle(ev.Turn.Role).Render(ev.Turn.Speaker + ":")
	switch {
	case ev.Fallback && ev.Turn.Content == "":
		fmt.Fprintf(&b, "%s %s\n", name, p.styles.fallback.Render("(no reply)"))
	case ev.Turn.Content == "":
		fmt.Fprintf(&b, "%s %s\n", name, p.styles.fallback.Render("(nothing to say)"))
	default:
		fmt.Fprintf(&b, "%s %s\n", name, p.styles.content.Render(ev.Turn.Content))
	}

	if ev.Code != "" && ev.Code != p.lastCode {
		p.lastCode = ev.Code
		for _, line := range strings.Split(strings.TrimRight(ev.Code, "\n"), "\n") {
			fmt.Fprintf(&b, "    %s\n", p.styles.code.Render("│ "+line))
		}
	}
	if ev.Score != nil && ev.Score != p.lastScore {
		p.lastScore = ev.Score
		fmt.Fprintf(&b, "    %s\n", p.styles.score.Render(fmt.Sprintf("score %.1f / 5", *ev.Score)))
	}

	_, _ = io.WriteString(p.w, b.String())
}

func (p *Printer) speakerStyle(role string) lipgloss.Style {
	switch proto.Role(role) {
	case proto.RolePanelist:
		return p.styles.panelist
	case proto.RoleCandidate:
		return p.styles.candidate
	case proto.RoleActivityMonitor:
		return p.styles.monitor
	case proto.RoleEvaluator:
		return p.styles.evaluator
	default:
		return p.styles.section
	}
}

func sectionHeading(ev orchestrator.TurnEvent) string {
	if ev.Topic == "" {
		return ""
	}
	parts := []string{ev.Topic}
	if ev.Subtopic != "" {
		parts = append(parts, ev.Subtopic)
	}
	if ev.Section != "" {
		parts = append(parts, ev.Section)
	}
	return strings.Join(parts, " / ")
}
