package progress

import (
	"fmt"

	"interviewsim/pkg/plan"
)

// SectionKey addresses one section in the graph.
type SectionKey struct {
	Round    plan.Round `json:"round"`
	Topic    string     `json:"topic"`
	Subtopic string     `json:"subtopic"`
	Section  string     `json:"section"`
}

// Snapshot is the serialisable form of a graph: the list of sections marked done.
type Snapshot struct {
	Done []SectionKey `json:"done"`
}

// Snapshot captures every done section in traversal order.
func (g *Graph) Snapshot() Snapshot {
	var snap Snapshot
	for _, r := range g.rounds {
		for _, tn := range g.topics[r] {
			for _, st := range tn.order {
				for _, sec := range st.spec.Sections {
					if st.sections[sec] {
						snap.Done = append(snap.Done, SectionKey{Round: r, Topic: tn.spec.Name, Subtopic: st.spec.Name, Section: sec})
					}
				}
			}
		}
	}
	return snap
}

// Restore replays a snapshot onto the graph. Restoring only ever sets flags, so it
// never undoes completion. Keys that no longer exist in the plan are skipped and
// reported in the returned error; every valid key is still applied.
func (g *Graph) Restore(snap Snapshot) error {
	var skipped []SectionKey
	for _, k := range snap.Done {
		if _, err := g.MarkSectionDone(k.Round, k.Topic, k.Subtopic, k.Section); err != nil {
			skipped = append(skipped, k)
		}
	}
	if len(skipped) > 0 {
		return fmt.Errorf("%w: %d snapshot keys not in plan (first %s/%s/%s/%s)",
			ErrUnknownKey, len(skipped), skipped[0].Round, skipped[0].Topic, skipped[0].Subtopic, skipped[0].Section)
	}
	return nil
}
