package policy

import (
	"context"
	"fmt"

	"interviewsim/pkg/generate"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/memory"
)

// SummaryContext is the material for one summary. Subtopic is empty for topic summaries.
type SummaryContext struct {
	Round    string
	Topic    string
	Subtopic string
	Dialog   []memory.Turn
	Previous []string
}

// Summarizer condenses finished dialogue.
type Summarizer interface {
	Summarize(ctx context.Context, sc *SummaryContext) ([]string, error)
}

// Extractive keeps the last few turns, shortened.
type Extractive struct {
	MaxLines int
	MaxChars int
}

// Summarize implements Summarizer.
func (e Extractive) Summarize(_ context.Context, sc *SummaryContext) ([]string, error) {
	maxLines := e.MaxLines
	if maxLines <= 0 {
		maxLines = 3
	}
	maxChars := e.MaxChars
	if maxChars <= 0 {
		maxChars = 160
	}

	if len(sc.Dialog) == 0 {
		if sc.Subtopic != "" {
			return []string{fmt.Sprintf("%s / %s: nothing discussed.", sc.Topic, sc.Subtopic)}, nil
		}
		return append([]string(nil), sc.Previous...), nil
	}

	start := len(sc.Dialog) - maxLines
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, len(sc.Dialog)-start)
	for _, t := range sc.Dialog[start:] {
		out = append(out, truncate(fmt.Sprintf("%s: %s", t.Speaker, t.Content), maxChars))
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// ModelSummarizer asks the model for a summary and falls back to extraction.
type ModelSummarizer struct {
	gen      *generate.Generator
	fallback Extractive
	logger   *logx.Logger
}

// NewModelSummarizer creates a model-backed summarizer.
func NewModelSummarizer(gen *generate.Generator) *ModelSummarizer {
	return &ModelSummarizer{gen: gen, logger: logx.NewLogger("summarizer")}
}

// Summarize implements Summarizer.
func (m *ModelSummarizer) Summarize(ctx context.Context, sc *SummaryContext) ([]string, error) {
	scope := sc.Topic
	if sc.Subtopic != "" {
		scope += " / " + sc.Subtopic
	}
	notes := []string{fmt.Sprintf("Summarise the discussion of %s in at most three short sentences.", scope)}
	for _, p := range sc.Previous {
		notes = append(notes, "Earlier summary: "+p)
	}

	reply, err := m.gen.Generate(ctx, &generate.Request{
		Instructions: "You write concise notes about an interview in progress.",
		History:      sc.Dialog,
		HistoryTitle: "Conversation so far",
		Notes:        notes,
		Keys:         []string{"summary"},
	})
	if err != nil || len(reply.Summary) == 0 {
		if err != nil {
			m.logger.Warn("summary model failed, extracting instead: %v", err)
		}
		return m.fallback.Summarize(ctx, sc)
	}
	return reply.Summary, nil
}
