// Package progress tracks completion of the Round → Topic → Subtopic → Section tree.
//
// Completion flags are derived bottom-up and monotonic: a section flag only ever goes
// from false to true, a subtopic is complete when all of its sections are, and a topic
// is complete when all of its subtopics are. An empty collection is complete. Traversal
// is always a linear scan in declared order, so two runs over the same plan visit nodes
// identically.
//
// A Graph is owned by a single goroutine (the orchestrator) and is not safe for
// concurrent use.
package progress

import (
	"errors"
	"fmt"

	"interviewsim/pkg/plan"
)

// ErrUnknownKey is returned when a round/topic/subtopic/section key is not part of the graph.
var ErrUnknownKey = errors.New("unknown progress key")

// SubtopicNode holds the section flags of one subtopic.
type SubtopicNode struct {
	spec      plan.SubtopicSpec
	sections  map[string]bool
	completed bool
}

// Name returns the subtopic name.
func (s *SubtopicNode) Name() string { return s.spec.Name }

// Spec returns the underlying subtopic spec.
func (s *SubtopicNode) Spec() plan.SubtopicSpec { return s.spec }

// Completed reports whether every section is done.
func (s *SubtopicNode) Completed() bool { return s.completed }

// SectionDone reports the flag of one section; unknown sections report false.
func (s *SubtopicNode) SectionDone(section string) bool { return s.sections[section] }

func (s *SubtopicNode) recompute() {
	if s.completed {
		return
	}
	for _, name := range s.spec.Sections {
		if !s.sections[name] {
			return
		}
	}
	s.completed = true
}

// TopicNode holds the subtopic nodes of one topic.
type TopicNode struct {
	spec      plan.TopicSpec
	subtopics map[string]*SubtopicNode
	order     []*SubtopicNode
	completed bool
}

// Name returns the topic name.
func (t *TopicNode) Name() string { return t.spec.Name }

// Spec returns the underlying topic spec.
func (t *TopicNode) Spec() plan.TopicSpec { return t.spec }

// Completed reports whether every subtopic is complete.
func (t *TopicNode) Completed() bool { return t.completed }

// Subtopic looks up a child node by name.
func (t *TopicNode) Subtopic(name string) (*SubtopicNode, bool) {
	st, ok := t.subtopics[name]
	return st, ok
}

// Subtopics returns the child nodes in declared order.
func (t *TopicNode) Subtopics() []*SubtopicNode {
	out := make([]*SubtopicNode, len(t.order))
	copy(out, t.order)
	return out
}

func (t *TopicNode) recompute() {
	if t.completed {
		return
	}
	for _, st := range t.order {
		st.recompute()
		if !st.completed {
			return
		}
	}
	t.completed = true
}

// Graph is the per-session progress tree across all rounds.
type Graph struct {
	rounds []plan.Round
	topics map[plan.Round][]*TopicNode
}

// New builds a graph from a plan with every section flag false. Empty subtopics and
// topics are complete immediately.
func New(p *plan.Plan) *Graph {
	g := &Graph{topics: make(map[plan.Round][]*TopicNode, len(p.Rounds))}
	for _, rs := range p.Rounds {
		g.rounds = append(g.rounds, rs.Round)
		nodes := make([]*TopicNode, 0, len(rs.Topics))
		for _, ts := range rs.Topics {
			tn := &TopicNode{spec: ts, subtopics: make(map[string]*SubtopicNode, len(ts.Subtopics))}
			for _, ss := range ts.Subtopics {
				sn := &SubtopicNode{spec: ss, sections: make(map[string]bool, len(ss.Sections))}
				for _, sec := range ss.Sections {
					sn.sections[sec] = false
				}
				tn.subtopics[ss.Name] = sn
				tn.order = append(tn.order, sn)
			}
			tn.recompute()
			nodes = append(nodes, tn)
		}
		g.topics[rs.Round] = nodes
	}
	return g
}

// Rounds returns the rounds in declared order.
func (g *Graph) Rounds() []plan.Round {
	out := make([]plan.Round, len(g.rounds))
	copy(out, g.rounds)
	return out
}

// NextRound returns the round declared after r.
func (g *Graph) NextRound(r plan.Round) (plan.Round, bool) {
	for i, cur := range g.rounds {
		if cur == r && i+1 < len(g.rounds) {
			return g.rounds[i+1], true
		}
	}
	return "", false
}

// Topics returns the topic nodes of a round in declared order.
func (g *Graph) Topics(r plan.Round) []*TopicNode {
	nodes := g.topics[r]
	out := make([]*TopicNode, len(nodes))
	copy(out, nodes)
	return out
}

// Topic looks up a topic node.
func (g *Graph) Topic(r plan.Round, topic string) (*TopicNode, bool) {
	for _, tn := range g.topics[r] {
		if tn.spec.Name == topic {
			return tn, true
		}
	}
	return nil, false
}

// NextTopic returns the first incomplete topic of the round. False means the round is exhausted.
func (g *Graph) NextTopic(r plan.Round) (*TopicNode, bool) {
	for _, tn := range g.topics[r] {
		if !tn.completed {
			return tn, true
		}
	}
	return nil, false
}

// NextSubtopic returns the first incomplete subtopic of a topic.
func (g *Graph) NextSubtopic(tn *TopicNode) (*SubtopicNode, bool) {
	if tn == nil {
		return nil, false
	}
	for _, st := range tn.order {
		if !st.completed {
			return st, true
		}
	}
	return nil, false
}

// NextSection returns the first section whose flag is false.
func (g *Graph) NextSection(st *SubtopicNode) (string, bool) {
	if st == nil || st.completed {
		return "", false
	}
	for _, sec := range st.spec.Sections {
		if !st.sections[sec] {
			return sec, true
		}
	}
	return "", false
}

// RoundExhausted reports whether every topic of the round is complete.
func (g *Graph) RoundExhausted(r plan.Round) bool {
	_, ok := g.NextTopic(r)
	return !ok
}

// MarkResult reports which levels flipped to complete in a MarkSectionDone call.
type MarkResult struct {
	SubtopicCompleted bool
	TopicCompleted    bool
	RoundExhausted    bool
}

// MarkSectionDone sets one section flag and recomputes subtopic then topic completion.
// Marking an already-done section is a no-op apart from the recompute.
func (g *Graph) MarkSectionDone(r plan.Round, topic, subtopic, section string) (MarkResult, error) {
	tn, ok := g.Topic(r, topic)
	if !ok {
		return MarkResult{}, fmt.Errorf("%w: %s/%s", ErrUnknownKey, r, topic)
	}
	st, ok := tn.subtopics[subtopic]
	if !ok {
		return MarkResult{}, fmt.Errorf("%w: %s/%s/%s", ErrUnknownKey, r, topic, subtopic)
	}
	if _, ok := st.sections[section]; !ok {
		return MarkResult{}, fmt.Errorf("%w: %s/%s/%s/%s", ErrUnknownKey, r, topic, subtopic, section)
	}

	subtopicBefore, topicBefore := st.completed, tn.completed
	st.sections[section] = true
	st.recompute()
	tn.recompute()

	return MarkResult{
		SubtopicCompleted: !subtopicBefore && st.completed,
		TopicCompleted:    !topicBefore && tn.completed,
		RoundExhausted:    !topicBefore && tn.completed && g.RoundExhausted(r),
	}, nil
}

// CompleteSubtopic marks every remaining section of a subtopic done. Used when a
// subtopic runs out of time.
func (g *Graph) CompleteSubtopic(r plan.Round, topic, subtopic string) (MarkResult, error) {
	tn, ok := g.Topic(r, topic)
	if !ok {
		return MarkResult{}, fmt.Errorf("%w: %s/%s", ErrUnknownKey, r, topic)
	}
	st, ok := tn.subtopics[subtopic]
	if !ok {
		return MarkResult{}, fmt.Errorf("%w: %s/%s/%s", ErrUnknownKey, r, topic, subtopic)
	}

	var res MarkResult
	if len(st.spec.Sections) == 0 {
		return res, nil
	}
	for _, sec := range st.spec.Sections {
		step, err := g.MarkSectionDone(r, topic, subtopic, sec)
		if err != nil {
			return res, err
		}
		res.SubtopicCompleted = res.SubtopicCompleted || step.SubtopicCompleted
		res.TopicCompleted = res.TopicCompleted || step.TopicCompleted
		res.RoundExhausted = res.RoundExhausted || step.RoundExhausted
	}
	return res, nil
}

// TopicCompleted reports the completion flag of a topic; unknown topics report false.
func (g *Graph) TopicCompleted(r plan.Round, topic string) bool {
	tn, ok := g.Topic(r, topic)
	return ok && tn.completed
}

// SubtopicCompleted reports the completion flag of a subtopic; unknown keys report false.
func (g *Graph) SubtopicCompleted(r plan.Round, topic, subtopic string) bool {
	tn, ok := g.Topic(r, topic)
	if !ok {
		return false
	}
	st, ok := tn.subtopics[subtopic]
	return ok && st.completed
}

// LastCompletedTopic returns the last topic before the first incomplete one.
func (g *Graph) LastCompletedTopic(r plan.Round) (*TopicNode, bool) {
	var last *TopicNode
	for _, tn := range g.topics[r] {
		if !tn.completed {
			break
		}
		last = tn
	}
	return last, last != nil
}

// LastCompletedSubtopic returns the last subtopic before the first incomplete one.
func (g *Graph) LastCompletedSubtopic(r plan.Round, topic string) (*SubtopicNode, bool) {
	tn, ok := g.Topic(r, topic)
	if !ok {
		return nil, false
	}
	var last *SubtopicNode
	for _, st := range tn.order {
		if !st.completed {
			break
		}
		last = st
	}
	return last, last != nil
}

// UncompletedSubtopics lists incomplete subtopic names in declared order.
func (g *Graph) UncompletedSubtopics(r plan.Round, topic string) []string {
	tn, ok := g.Topic(r, topic)
	if !ok {
		return nil
	}
	var names []string
	for _, st := range tn.order {
		if !st.completed {
			names = append(names, st.spec.Name)
		}
	}
	return names
}
