package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"interviewsim/pkg/orchestrator"
	"interviewsim/pkg/progress"
)

func renderReport(w io.Writer, r *orchestrator.Report) {
	r2 := lipgloss.NewRenderer(w)
	title := r2.NewStyle().Bold(true)

	status := "stopped"
	if r.Completed {
		status = "completed"
	}
	fmt.Fprintf(w, "\n%s\n", title.Render("Session "+r.SessionID+" "+status))
	fmt.Fprintf(w, "turns %d, fallbacks %d, duration %s\n", r.Turns, r.Fallbacks, r.Duration.Round(time.Second))
	if len(r.Rounds) > 0 {
		fmt.Fprintln(w, renderRounds(r2, r.Rounds))
	}
	for _, v := range r.Verdicts {
		score := "n/a"
		if v.Score != nil {
			score = fmt.Sprintf("%.1f", *v.Score)
		}
		fmt.Fprintf(w, "%s / %s: %s\n", v.Round, v.Topic, score)
		for _, line := range v.Lines {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

func renderRounds(r *lipgloss.Renderer, rounds []progress.Stats) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("241"))).
		Headers("ROUND", "TOPICS", "SUBTOPICS", "TOPIC %", "SUBTOPIC %")
	for _, st := range rounds {
		t.Row(
			string(st.Round),
			fmt.Sprintf("%d/%d", st.CompletedTopics, st.TotalTopics),
			fmt.Sprintf("%d/%d", st.CompletedSubtopics, st.TotalSubtopics),
			fmt.Sprintf("%.0f", st.TopicCompletionPercentage),
			fmt.Sprintf("%.0f", st.SubtopicCompletionPercentage),
		)
	}
	return t.String()
}
