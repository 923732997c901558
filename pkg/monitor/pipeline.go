package monitor

import (
	"context"
	"fmt"
	"strings"

	"interviewsim/pkg/generate"
)

// Inspection is what static inspection finds in a submission.
type Inspection struct {
	Lines     int
	Functions int
	Tests     int
	Todos     int
	Blank     bool
}

// Inspect scans code line by line.
func Inspect(code string) Inspection {
	var in Inspection
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		in.Lines++
		switch {
		case strings.HasPrefix(trimmed, "func Test"), strings.HasPrefix(trimmed, "def test_"):
			in.Tests++
			in.Functions++
		case strings.HasPrefix(trimmed, "func "), strings.HasPrefix(trimmed, "def "), strings.HasPrefix(trimmed, "function "):
			in.Functions++
		}
		if strings.Contains(trimmed, "TODO") || strings.Contains(trimmed, "FIXME") {
			in.Todos++
		}
	}
	in.Blank = in.Lines == 0
	return in
}

// Assessor turns an inspection into a progress note.
type Assessor interface {
	Assess(ctx context.Context, in Inspection, code string) (string, error)
}

// HeuristicAssessor describes the inspection without calling a model.
type HeuristicAssessor struct{}

// Assess implements Assessor.
func (HeuristicAssessor) Assess(_ context.Context, in Inspection, _ string) (string, error) {
	if in.Blank {
		return "empty submission", nil
	}
	parts := []string{fmt.Sprintf("%d lines", in.Lines), fmt.Sprintf("%d functions", in.Functions)}
	if in.Tests > 0 {
		parts = append(parts, fmt.Sprintf("%d tests", in.Tests))
	}
	if in.Todos > 0 {
		parts = append(parts, fmt.Sprintf("%d open TODOs", in.Todos))
	}
	return strings.Join(parts, ", "), nil
}

// Generator produces structured replies.
type Generator interface {
	Generate(ctx context.Context, req *generate.Request) (generate.Reply, error)
}

// ModelAssessor asks a model for a one-line progress assessment.
type ModelAssessor struct {
	gen Generator
}

// NewModelAssessor creates a model-backed assessor.
func NewModelAssessor(gen Generator) *ModelAssessor {
	return &ModelAssessor{gen: gen}
}

// Assess implements Assessor.
func (m *ModelAssessor) Assess(ctx context.Context, in Inspection, code string) (string, error) {
	reply, err := m.gen.Generate(ctx, &generate.Request{
		Instructions: "You watch a candidate's coding exercise and report progress in one short line.",
		Notes: []string{
			fmt.Sprintf("Static inspection: %d lines, %d functions, %d tests, %d TODOs.", in.Lines, in.Functions, in.Tests, in.Todos),
			"Code:\n```\n" + code + "\n```",
		},
		Keys:         []string{"lines"},
		RequireLines: true,
	})
	if err != nil {
		return "", err
	}
	if len(reply.Lines) == 0 {
		return "", generate.ErrEmptyReply
	}
	return reply.Lines[0], nil
}
