// Package memory stores the dialogue and summaries of a session, indexed by the same
// round → topic → subtopic keys as the progress graph.
//
// Nodes must be created explicitly with CreateTopic (or Populate) before anything is
// appended to them; appending to an unknown key returns ErrNotCreated and stores nothing.
// Reads against unknown keys return empty results, since missing memory is normal.
// Subtopic summaries accumulate while topic summaries are replaced wholesale.
package memory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"interviewsim/pkg/plan"
)

// ErrNotCreated is returned when appending to a key that was never created.
var ErrNotCreated = errors.New("memory node not created")

// Turn is one recorded utterance.
type Turn struct {
	Speaker string    `json:"speaker"`
	Role    string    `json:"role,omitempty"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// CompletionView is the read-only slice of the progress graph the cross-cut query needs.
type CompletionView interface {
	TopicCompleted(round plan.Round, topic string) bool
}

type subtopicMemory struct {
	dialog    []Turn
	summaries []string
}

type topicMemory struct {
	name      string
	subtopics map[string]*subtopicMemory
	order     []string
	summary   []string
}

// Graph is the memory tree of one session. It is safe for concurrent use so that
// observers can read while the orchestrator writes.
type Graph struct {
	mu     sync.RWMutex
	rounds map[plan.Round]*roundMemory
}

type roundMemory struct {
	topics map[string]*topicMemory
	order  []string
}

// New returns an empty memory graph.
func New() *Graph {
	return &Graph{rounds: make(map[plan.Round]*roundMemory)}
}

// Populate creates every topic and subtopic declared by the plan.
func (g *Graph) Populate(p *plan.Plan) {
	for _, rs := range p.Rounds {
		for _, ts := range rs.Topics {
			g.CreateTopic(rs.Round, ts.Name, ts.SubtopicNames())
		}
	}
}

// CreateTopic allocates empty nodes for a topic and its subtopics. Calling it again for
// an existing topic adds missing subtopics and leaves existing logs untouched.
func (g *Graph) CreateTopic(r plan.Round, topic string, subtopics []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rounds[r]
	if !ok {
		rm = &roundMemory{topics: make(map[string]*topicMemory)}
		g.rounds[r] = rm
	}
	tm, ok := rm.topics[topic]
	if !ok {
		tm = &topicMemory{name: topic, subtopics: make(map[string]*subtopicMemory, len(subtopics))}
		rm.topics[topic] = tm
		rm.order = append(rm.order, topic)
	}
	for _, st := range subtopics {
		if _, exists := tm.subtopics[st]; exists {
			continue
		}
		tm.subtopics[st] = &subtopicMemory{}
		tm.order = append(tm.order, st)
	}
}

// HasTopic reports whether a topic node exists.
func (g *Graph) HasTopic(r plan.Round, topic string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.topicLocked(r, topic) != nil
}

func (g *Graph) topicLocked(r plan.Round, topic string) *topicMemory {
	rm, ok := g.rounds[r]
	if !ok {
		return nil
	}
	return rm.topics[topic]
}

func (g *Graph) subtopicLocked(r plan.Round, topic, subtopic string) *subtopicMemory {
	tm := g.topicLocked(r, topic)
	if tm == nil {
		return nil
	}
	return tm.subtopics[subtopic]
}

// AppendDialog pushes one turn onto a subtopic log.
func (g *Graph) AppendDialog(r plan.Round, topic, subtopic string, turn Turn) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sm := g.subtopicLocked(r, topic, subtopic)
	if sm == nil {
		return fmt.Errorf("%w: %s/%s/%s", ErrNotCreated, r, topic, subtopic)
	}
	sm.dialog = append(sm.dialog, turn)
	return nil
}

// AppendSubtopicSummary extends the subtopic's summary list.
func (g *Graph) AppendSubtopicSummary(r plan.Round, topic, subtopic string, lines []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sm := g.subtopicLocked(r, topic, subtopic)
	if sm == nil {
		return fmt.Errorf("%w: %s/%s/%s", ErrNotCreated, r, topic, subtopic)
	}
	sm.summaries = append(sm.summaries, lines...)
	return nil
}

// AppendTopicSummary replaces the topic-level summary.
func (g *Graph) AppendTopicSummary(r plan.Round, topic string, lines []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tm := g.topicLocked(r, topic)
	if tm == nil {
		return fmt.Errorf("%w: %s/%s", ErrNotCreated, r, topic)
	}
	tm.summary = append([]string(nil), lines...)
	return nil
}

// DialogFor returns a copy of one subtopic's log.
func (g *Graph) DialogFor(r plan.Round, topic, subtopic string) []Turn {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sm := g.subtopicLocked(r, topic, subtopic)
	if sm == nil {
		return nil
	}
	return append([]Turn(nil), sm.dialog...)
}

// AllDialogForTopic concatenates every subtopic log of a topic in subtopic order.
func (g *Graph) AllDialogForTopic(r plan.Round, topic string) []Turn {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.topicDialogLocked(g.topicLocked(r, topic))
}

func (g *Graph) topicDialogLocked(tm *topicMemory) []Turn {
	if tm == nil {
		return nil
	}
	var out []Turn
	for _, name := range tm.order {
		out = append(out, tm.subtopics[name].dialog...)
	}
	return out
}

// AllDialogForRound concatenates every topic's dialogue in topic order.
func (g *Graph) AllDialogForRound(r plan.Round) []Turn {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rm, ok := g.rounds[r]
	if !ok {
		return nil
	}
	var out []Turn
	for _, name := range rm.order {
		out = append(out, g.topicDialogLocked(rm.topics[name])...)
	}
	return out
}

// SubtopicSummary returns a copy of a subtopic's accumulated summaries.
func (g *Graph) SubtopicSummary(r plan.Round, topic, subtopic string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sm := g.subtopicLocked(r, topic, subtopic)
	if sm == nil {
		return nil
	}
	return append([]string(nil), sm.summaries...)
}

// TopicSummary returns a copy of a topic's current summary.
func (g *Graph) TopicSummary(r plan.Round, topic string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tm := g.topicLocked(r, topic)
	if tm == nil {
		return nil
	}
	return append([]string(nil), tm.summary...)
}

// SummaryForCompletedTopics concatenates the topic summaries of every topic the
// completion view reports as done, in topic order. The view is consulted on every
// call; nothing is cached.
func (g *Graph) SummaryForCompletedTopics(r plan.Round, completion CompletionView) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rm, ok := g.rounds[r]
	if !ok || completion == nil {
		return nil
	}
	var out []string
	for _, name := range rm.order {
		if completion.TopicCompleted(r, name) {
			out = append(out, rm.topics[name].summary...)
		}
	}
	return out
}

// Clear drops everything. Only called at session teardown.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rounds = make(map[plan.Round]*roundMemory)
}
