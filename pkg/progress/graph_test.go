package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewsim/pkg/plan"
)

const round1 plan.Round = "ROUND_1"

func introPlan() *plan.Plan {
	return &plan.Plan{
		Rounds: []plan.RoundSpec{
			{
				Round: round1,
				Topics: []plan.TopicSpec{
					{
						Name: "Intro",
						Subtopics: []plan.SubtopicSpec{
							{Name: "Welcome", Sections: []string{"greet", "overview"}},
							{Name: "RoleFit", Sections: []string{"background"}},
						},
					},
					{
						Name: "Experience",
						Subtopics: []plan.SubtopicSpec{
							{Name: "Projects", Sections: []string{"recent"}},
						},
					},
				},
			},
			{
				Round: "ROUND_2",
				Topics: []plan.TopicSpec{
					{Name: "Coding", Subtopics: []plan.SubtopicSpec{{Name: "Problem", Sections: []string{"statement"}}}},
				},
			},
		},
	}
}

func mustMark(t *testing.T, g *Graph, topic, subtopic, section string) MarkResult {
	t.Helper()
	res, err := g.MarkSectionDone(round1, topic, subtopic, section)
	require.NoError(t, err)
	return res
}

func TestIntroScenario(t *testing.T) {
	g := New(introPlan())

	intro, ok := g.Topic(round1, "Intro")
	require.True(t, ok)
	welcome, ok := intro.Subtopic("Welcome")
	require.True(t, ok)

	res := mustMark(t, g, "Intro", "Welcome", "greet")
	assert.Equal(t, MarkResult{}, res)

	sec, ok := g.NextSection(welcome)
	require.True(t, ok)
	assert.Equal(t, "overview", sec)
	assert.False(t, intro.Completed())

	res = mustMark(t, g, "Intro", "Welcome", "overview")
	assert.True(t, res.SubtopicCompleted)
	assert.False(t, res.TopicCompleted)
	assert.True(t, welcome.Completed())

	next, ok := g.NextSubtopic(intro)
	require.True(t, ok)
	assert.Equal(t, "RoleFit", next.Name())
}

func TestPropagationFlipsTopicInSameCall(t *testing.T) {
	g := New(introPlan())
	mustMark(t, g, "Intro", "Welcome", "greet")
	mustMark(t, g, "Intro", "Welcome", "overview")

	assert.False(t, g.TopicCompleted(round1, "Intro"))
	res := mustMark(t, g, "Intro", "RoleFit", "background")
	assert.True(t, res.SubtopicCompleted)
	assert.True(t, res.TopicCompleted)
	assert.False(t, res.RoundExhausted)
	assert.True(t, g.TopicCompleted(round1, "Intro"))
}

func TestPartialSubtopicIsIncomplete(t *testing.T) {
	g := New(introPlan())
	mustMark(t, g, "Intro", "Welcome", "greet")

	assert.True(t, mustTopic(t, g, "Intro").subtopics["Welcome"].SectionDone("greet"))
	assert.False(t, g.SubtopicCompleted(round1, "Intro", "Welcome"))
}

func mustTopic(t *testing.T, g *Graph, name string) *TopicNode {
	t.Helper()
	tn, ok := g.Topic(round1, name)
	require.True(t, ok)
	return tn
}

func TestMonotonicCompletion(t *testing.T) {
	g := New(introPlan())
	mustMark(t, g, "Intro", "Welcome", "greet")
	mustMark(t, g, "Intro", "Welcome", "overview")
	mustMark(t, g, "Intro", "RoleFit", "background")
	require.True(t, g.TopicCompleted(round1, "Intro"))

	// Re-marking and marking elsewhere never resets completion.
	for i := 0; i < 3; i++ {
		res := mustMark(t, g, "Intro", "Welcome", "greet")
		assert.False(t, res.SubtopicCompleted, "flip is reported once")
		assert.False(t, res.TopicCompleted, "flip is reported once")
		assert.True(t, g.TopicCompleted(round1, "Intro"))
	}
	mustMark(t, g, "Experience", "Projects", "recent")
	assert.True(t, g.TopicCompleted(round1, "Intro"))
}

func TestEmptyCollectionsAreComplete(t *testing.T) {
	g := New(&plan.Plan{Rounds: []plan.RoundSpec{{
		Round: round1,
		Topics: []plan.TopicSpec{
			{Name: "NoSubtopics"},
			{Name: "EmptySubtopic", Subtopics: []plan.SubtopicSpec{{Name: "Nothing"}}},
			{Name: "Real", Subtopics: []plan.SubtopicSpec{{Name: "S", Sections: []string{"a"}}}},
		},
	}}})

	assert.True(t, g.TopicCompleted(round1, "NoSubtopics"))
	assert.True(t, g.TopicCompleted(round1, "EmptySubtopic"))
	assert.True(t, g.SubtopicCompleted(round1, "EmptySubtopic", "Nothing"))

	tn, ok := g.NextTopic(round1)
	require.True(t, ok)
	assert.Equal(t, "Real", tn.Name())

	st, _ := mustTopic(t, g, "EmptySubtopic").Subtopic("Nothing")
	_, ok = g.NextSection(st)
	assert.False(t, ok)
}

func TestLinearTraversalOrder(t *testing.T) {
	g := New(introPlan())

	// Completing a later topic first must not make traversal skip the earlier one.
	res := mustMark(t, g, "Experience", "Projects", "recent")
	assert.True(t, res.TopicCompleted)
	assert.False(t, res.RoundExhausted)

	tn, ok := g.NextTopic(round1)
	require.True(t, ok)
	assert.Equal(t, "Intro", tn.Name())

	// Same for subtopics and sections.
	mustMark(t, g, "Intro", "RoleFit", "background")
	st, ok := g.NextSubtopic(tn)
	require.True(t, ok)
	assert.Equal(t, "Welcome", st.Name())

	mustMark(t, g, "Intro", "Welcome", "overview")
	sec, ok := g.NextSection(st)
	require.True(t, ok)
	assert.Equal(t, "greet", sec)

	// LastCompletedTopic stops at the first incomplete topic even though Experience is done.
	_, ok = g.LastCompletedTopic(round1)
	assert.False(t, ok)
}

func TestNextSectionOnCompletedSubtopic(t *testing.T) {
	g := New(introPlan())
	mustMark(t, g, "Intro", "RoleFit", "background")
	st, _ := mustTopic(t, g, "Intro").Subtopic("RoleFit")

	_, ok := g.NextSection(st)
	assert.False(t, ok)
	_, ok = g.NextSection(nil)
	assert.False(t, ok)
	_, ok = g.NextSubtopic(nil)
	assert.False(t, ok)
}

func TestSingleSectionRoundEndToEnd(t *testing.T) {
	g := New(&plan.Plan{Rounds: []plan.RoundSpec{{
		Round:  round1,
		Topics: []plan.TopicSpec{{Name: "Only", Subtopics: []plan.SubtopicSpec{{Name: "One", Sections: []string{"s"}}}}},
	}}})

	res, err := g.MarkSectionDone(round1, "Only", "One", "s")
	require.NoError(t, err)
	assert.Equal(t, MarkResult{SubtopicCompleted: true, TopicCompleted: true, RoundExhausted: true}, res)

	_, ok := g.NextTopic(round1)
	assert.False(t, ok)
	assert.True(t, g.RoundExhausted(round1))
	assert.InDelta(t, 100.0, g.Stats(round1).TopicCompletionPercentage, 0.0001)
}

func TestMarkUnknownKeys(t *testing.T) {
	g := New(introPlan())

	for _, k := range []SectionKey{
		{Round: "ROUND_9", Topic: "Intro", Subtopic: "Welcome", Section: "greet"},
		{Round: round1, Topic: "Nope", Subtopic: "Welcome", Section: "greet"},
		{Round: round1, Topic: "Intro", Subtopic: "Nope", Section: "greet"},
		{Round: round1, Topic: "Intro", Subtopic: "Welcome", Section: "nope"},
	} {
		_, err := g.MarkSectionDone(k.Round, k.Topic, k.Subtopic, k.Section)
		assert.ErrorIs(t, err, ErrUnknownKey)
	}
	assert.Equal(t, 0, g.Stats(round1).CompletedSubtopics)
}

func TestLastCompletedAndUncompleted(t *testing.T) {
	g := New(introPlan())

	_, ok := g.LastCompletedSubtopic(round1, "Intro")
	assert.False(t, ok)
	assert.Equal(t, []string{"Welcome", "RoleFit"}, g.UncompletedSubtopics(round1, "Intro"))

	mustMark(t, g, "Intro", "Welcome", "greet")
	mustMark(t, g, "Intro", "Welcome", "overview")

	st, ok := g.LastCompletedSubtopic(round1, "Intro")
	require.True(t, ok)
	assert.Equal(t, "Welcome", st.Name())
	assert.Equal(t, []string{"RoleFit"}, g.UncompletedSubtopics(round1, "Intro"))

	mustMark(t, g, "Intro", "RoleFit", "background")
	tn, ok := g.LastCompletedTopic(round1)
	require.True(t, ok)
	assert.Equal(t, "Intro", tn.Name())
	assert.Empty(t, g.UncompletedSubtopics(round1, "Intro"))
	assert.Nil(t, g.UncompletedSubtopics(round1, "Unknown"))
}

func TestCompleteSubtopic(t *testing.T) {
	g := New(introPlan())

	res, err := g.CompleteSubtopic(round1, "Intro", "Welcome")
	require.NoError(t, err)
	assert.True(t, res.SubtopicCompleted)
	assert.False(t, res.TopicCompleted)

	_, err = g.CompleteSubtopic(round1, "Intro", "Missing")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestRoundsAndNextRound(t *testing.T) {
	g := New(introPlan())
	assert.Equal(t, []plan.Round{round1, "ROUND_2"}, g.Rounds())

	next, ok := g.NextRound(round1)
	require.True(t, ok)
	assert.Equal(t, plan.Round("ROUND_2"), next)

	_, ok = g.NextRound("ROUND_2")
	assert.False(t, ok)
}
