package memory

import (
	"interviewsim/pkg/plan"
)

// SubtopicSnapshot is the serialisable form of one subtopic node.
type SubtopicSnapshot struct {
	Name      string   `json:"name"`
	Dialog    []Turn   `json:"dialog,omitempty"`
	Summaries []string `json:"summaries,omitempty"`
}

// TopicSnapshot is the serialisable form of one topic node.
type TopicSnapshot struct {
	Round     plan.Round         `json:"round"`
	Name      string             `json:"name"`
	Summary   []string           `json:"summary,omitempty"`
	Subtopics []SubtopicSnapshot `json:"subtopics"`
}

// Snapshot is the serialisable form of a memory graph.
type Snapshot struct {
	Topics []TopicSnapshot `json:"topics"`
}

// Snapshot copies the whole graph. Round order follows rounds; within a round
// topics keep creation order.
func (g *Graph) Snapshot(rounds []plan.Round) Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var snap Snapshot
	for _, r := range rounds {
		rm, ok := g.rounds[r]
		if !ok {
			continue
		}
		for _, name := range rm.order {
			tm := rm.topics[name]
			ts := TopicSnapshot{Round: r, Name: name, Summary: append([]string(nil), tm.summary...)}
			for _, st := range tm.order {
				sm := tm.subtopics[st]
				ts.Subtopics = append(ts.Subtopics, SubtopicSnapshot{
					Name:      st,
					Dialog:    append([]Turn(nil), sm.dialog...),
					Summaries: append([]string(nil), sm.summaries...),
				})
			}
			snap.Topics = append(snap.Topics, ts)
		}
	}
	return snap
}

// Restore loads a snapshot, creating any nodes it names. Existing content for a restored
// subtopic is replaced by the snapshot's content.
func (g *Graph) Restore(snap Snapshot) {
	for _, ts := range snap.Topics {
		names := make([]string, 0, len(ts.Subtopics))
		for _, st := range ts.Subtopics {
			names = append(names, st.Name)
		}
		g.CreateTopic(ts.Round, ts.Name, names)

		g.mu.Lock()
		tm := g.topicLocked(ts.Round, ts.Name)
		tm.summary = append([]string(nil), ts.Summary...)
		for _, st := range ts.Subtopics {
			sm := tm.subtopics[st.Name]
			sm.dialog = append([]Turn(nil), st.Dialog...)
			sm.summaries = append([]string(nil), st.Summaries...)
		}
		g.mu.Unlock()
	}
}
