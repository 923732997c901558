package progress

import (
	"interviewsim/pkg/plan"
)

// Stats summarises completion of one round.
type Stats struct {
	Round                        plan.Round `json:"round"`
	TotalTopics                  int        `json:"total_topics"`
	CompletedTopics              int        `json:"completed_topics"`
	TotalSubtopics               int        `json:"total_subtopics"`
	CompletedSubtopics           int        `json:"completed_subtopics"`
	TopicCompletionPercentage    float64    `json:"topic_completion_percentage"`
	SubtopicCompletionPercentage float64    `json:"subtopic_completion_percentage"`
}

// Stats counts completed topics and subtopics of a round. Percentages over an empty
// set are 100, matching the empty-collection rule; an unknown round yields zero values.
func (g *Graph) Stats(r plan.Round) Stats {
	nodes, ok := g.topics[r]
	if !ok {
		return Stats{Round: r}
	}

	s := Stats{Round: r, TotalTopics: len(nodes)}
	for _, tn := range nodes {
		if tn.completed {
			s.CompletedTopics++
		}
		for _, st := range tn.order {
			s.TotalSubtopics++
			if st.completed {
				s.CompletedSubtopics++
			}
		}
	}
	s.TopicCompletionPercentage = percentage(s.CompletedTopics, s.TotalTopics)
	s.SubtopicCompletionPercentage = percentage(s.CompletedSubtopics, s.TotalSubtopics)
	return s
}

// AllStats returns Stats for every round in declared order.
func (g *Graph) AllStats() []Stats {
	out := make([]Stats, 0, len(g.rounds))
	for _, r := range g.rounds {
		out = append(out, g.Stats(r))
	}
	return out
}

func percentage(done, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(done) * 100 / float64(total)
}
