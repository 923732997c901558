// Package plan holds the interview plan: the static Round → Topic → Subtopic → Section tree
// supplied once before a session starts. The core never mutates a loaded plan.
package plan

import (
	"time"
)

// Round identifies a top-level interview phase (e.g. ROUND_1, ROUND_2).
type Round string

// SubtopicSpec describes one subtopic and its ordered sections.
type SubtopicSpec struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Minutes     int      `yaml:"time_budget_minutes,omitempty" json:"time_budget_minutes,omitempty"`
	Sections    []string `yaml:"sections,omitempty" json:"sections"`
}

// TimeBudget returns the subtopic budget, zero when unbounded.
func (s SubtopicSpec) TimeBudget() time.Duration {
	return time.Duration(s.Minutes) * time.Minute
}

// TopicSpec describes one topic and its ordered subtopics.
type TopicSpec struct {
	Name               string         `yaml:"name" json:"name"`
	Description        string         `yaml:"description,omitempty" json:"description,omitempty"`
	Minutes            int            `yaml:"time_budget_minutes,omitempty" json:"time_budget_minutes,omitempty"`
	EvaluationCriteria []string       `yaml:"evaluation_criteria,omitempty" json:"evaluation_criteria,omitempty"`
	Subtopics          []SubtopicSpec `yaml:"subtopics,omitempty" json:"subtopics"`
}

// TimeBudget returns the topic budget, zero when unbounded.
func (t TopicSpec) TimeBudget() time.Duration {
	return time.Duration(t.Minutes) * time.Minute
}

// SubtopicNames returns subtopic names in declared order.
func (t TopicSpec) SubtopicNames() []string {
	names := make([]string, 0, len(t.Subtopics))
	for i := range t.Subtopics {
		names = append(names, t.Subtopics[i].Name)
	}
	return names
}

// Subtopic looks up a subtopic by name.
func (t TopicSpec) Subtopic(name string) (SubtopicSpec, bool) {
	for i := range t.Subtopics {
		if t.Subtopics[i].Name == name {
			return t.Subtopics[i], true
		}
	}
	return SubtopicSpec{}, false
}

// RoundSpec is one round with its topics in declared order.
type RoundSpec struct {
	Round  Round       `yaml:"round" json:"round"`
	Topics []TopicSpec `yaml:"topics,omitempty" json:"topics"`
}

// Panelist is one interviewer instance bound to a round.
type Panelist struct {
	Name    string `yaml:"name" json:"name"`
	Round   Round  `yaml:"round" json:"round"`
	Persona string `yaml:"persona,omitempty" json:"persona,omitempty"`
}

// Candidate describes the interviewee.
type Candidate struct {
	Name    string `yaml:"name" json:"name"`
	Profile string `yaml:"profile,omitempty" json:"profile,omitempty"`
	Role    string `yaml:"applied_role,omitempty" json:"applied_role,omitempty"`
}

// Participants lists everyone taking part in the session.
type Participants struct {
	Candidate Candidate  `yaml:"candidate" json:"candidate"`
	Panelists []Panelist `yaml:"panelists,omitempty" json:"panelists"`
}

// Plan is the complete interview configuration tree.
//
//nolint:govet // Logical grouping is more important than field alignment.
type Plan struct {
	Title        string       `yaml:"title" json:"title"`
	Rounds       []RoundSpec  `yaml:"rounds" json:"rounds"`
	Participants Participants `yaml:"participants" json:"participants"`
}

// RoundOrder returns the rounds in declared order.
func (p *Plan) RoundOrder() []Round {
	out := make([]Round, 0, len(p.Rounds))
	for i := range p.Rounds {
		out = append(out, p.Rounds[i].Round)
	}
	return out
}

// Round looks up a round by name.
func (p *Plan) Round(r Round) (RoundSpec, bool) {
	for i := range p.Rounds {
		if p.Rounds[i].Round == r {
			return p.Rounds[i], true
		}
	}
	return RoundSpec{}, false
}

// Topic looks up a topic within a round.
func (p *Plan) Topic(r Round, name string) (TopicSpec, bool) {
	rs, ok := p.Round(r)
	if !ok {
		return TopicSpec{}, false
	}
	for i := range rs.Topics {
		if rs.Topics[i].Name == name {
			return rs.Topics[i], true
		}
	}
	return TopicSpec{}, false
}

// PanelistsFor returns the panelists bound to a round, in declared order.
func (p *Plan) PanelistsFor(r Round) []Panelist {
	var out []Panelist
	for _, pl := range p.Participants.Panelists {
		if pl.Round == r {
			out = append(out, pl)
		}
	}
	return out
}
