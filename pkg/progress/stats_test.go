package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	g := New(introPlan())

	s := g.Stats(round1)
	assert.Equal(t, 2, s.TotalTopics)
	assert.Equal(t, 3, s.TotalSubtopics)
	assert.Zero(t, s.CompletedTopics)
	assert.Zero(t, s.TopicCompletionPercentage)

	mustMark(t, g, "Intro", "RoleFit", "background")
	mustMark(t, g, "Experience", "Projects", "recent")

	s = g.Stats(round1)
	assert.Equal(t, 1, s.CompletedTopics)
	assert.Equal(t, 2, s.CompletedSubtopics)
	assert.InDelta(t, 50.0, s.TopicCompletionPercentage, 0.0001)
	assert.InDelta(t, 66.6667, s.SubtopicCompletionPercentage, 0.001)
}

func TestStatsUnknownRound(t *testing.T) {
	g := New(introPlan())
	s := g.Stats("ROUND_9")
	assert.Equal(t, Stats{Round: "ROUND_9"}, s)
}

func TestAllStatsOrder(t *testing.T) {
	g := New(introPlan())
	all := g.AllStats()
	require.Len(t, all, 2)
	assert.Equal(t, round1, all[0].Round)
	assert.Equal(t, 1, all[1].TotalTopics)
}
