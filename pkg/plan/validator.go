package plan

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is wrapped by every plan validation failure.
var ErrInvalid = errors.New("invalid plan")

// LintResult is the binary pass/fail outcome of Validate.
type LintResult struct {
	Passed   bool
	Blocking []string
}

// ValidationError carries every blocking problem found in a plan.
type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("invalid plan: %s", strings.Join(v.Problems, "; "))
}

// Unwrap lets errors.Is match ErrInvalid.
func (v *ValidationError) Unwrap() error {
	return ErrInvalid
}

// Validate checks the structural rules of a plan. A malformed plan is the only
// fatal condition of a session. Topics without subtopics and subtopics without
// sections are legal; they are complete from the start.
//
//nolint:gocyclo,cyclop // Each check is a flat loop; splitting hurts readability.
func Validate(p *Plan) LintResult {
	var problems []string

	if len(p.Rounds) == 0 {
		problems = append(problems, "plan declares no rounds")
	}

	seenRounds := make(map[Round]bool)
	for _, rs := range p.Rounds {
		if rs.Round == "" {
			problems = append(problems, "round with empty name")
			continue
		}
		if seenRounds[rs.Round] {
			problems = append(problems, fmt.Sprintf("duplicate round %q", rs.Round))
		}
		seenRounds[rs.Round] = true

		if len(rs.Topics) == 0 {
			problems = append(problems, fmt.Sprintf("round %q declares no topics", rs.Round))
		}
		problems = append(problems, checkTopics(rs)...)

		if len(p.PanelistsFor(rs.Round)) == 0 {
			problems = append(problems, fmt.Sprintf("round %q has no panelist", rs.Round))
		}
	}

	seenPanelists := make(map[string]bool)
	for _, pl := range p.Participants.Panelists {
		if pl.Name == "" {
			problems = append(problems, "panelist with empty name")
			continue
		}
		key := string(pl.Round) + "/" + pl.Name
		if seenPanelists[key] {
			problems = append(problems, fmt.Sprintf("duplicate panelist %q in round %q", pl.Name, pl.Round))
		}
		seenPanelists[key] = true
		if !seenRounds[pl.Round] {
			problems = append(problems, fmt.Sprintf("panelist %q bound to unknown round %q", pl.Name, pl.Round))
		}
	}

	if len(p.Rounds) > 0 && p.Participants.Candidate.Name == "" {
		problems = append(problems, "candidate name is required")
	}

	return LintResult{Passed: len(problems) == 0, Blocking: problems}
}

func checkTopics(rs RoundSpec) []string {
	var problems []string
	seenTopics := make(map[string]bool)
	for _, t := range rs.Topics {
		if t.Name == "" {
			problems = append(problems, fmt.Sprintf("round %q: topic with empty name", rs.Round))
			continue
		}
		if seenTopics[t.Name] {
			problems = append(problems, fmt.Sprintf("round %q: duplicate topic %q", rs.Round, t.Name))
		}
		seenTopics[t.Name] = true
		if t.Minutes < 0 {
			problems = append(problems, fmt.Sprintf("topic %q: negative time budget", t.Name))
		}

		seenSubtopics := make(map[string]bool)
		for _, st := range t.Subtopics {
			if st.Name == "" {
				problems = append(problems, fmt.Sprintf("topic %q: subtopic with empty name", t.Name))
				continue
			}
			if seenSubtopics[st.Name] {
				problems = append(problems, fmt.Sprintf("topic %q: duplicate subtopic %q", t.Name, st.Name))
			}
			seenSubtopics[st.Name] = true
			if st.Minutes < 0 {
				problems = append(problems, fmt.Sprintf("subtopic %q: negative time budget", st.Name))
			}

			seenSections := make(map[string]bool)
			for _, sec := range st.Sections {
				if strings.TrimSpace(sec) == "" {
					problems = append(problems, fmt.Sprintf("subtopic %q: empty section name", st.Name))
					continue
				}
				if seenSections[sec] {
					problems = append(problems, fmt.Sprintf("subtopic %q: duplicate section %q", st.Name, sec))
				}
				seenSections[sec] = true
			}
		}
	}
	return problems
}
