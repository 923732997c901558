package progress

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestore(t *testing.T) {
	g := New(introPlan())
	mustMark(t, g, "Intro", "Welcome", "greet")
	mustMark(t, g, "Intro", "RoleFit", "background")

	raw, err := json.Marshal(g.Snapshot())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.Len(t, snap.Done, 2)

	restored := New(introPlan())
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, g.Stats(round1), restored.Stats(round1))

	tn, _ := restored.NextTopic(round1)
	st, _ := restored.NextSubtopic(tn)
	sec, ok := restored.NextSection(st)
	require.True(t, ok)
	assert.Equal(t, "overview", sec)
}

func TestRestoreSkipsUnknownKeys(t *testing.T) {
	g := New(introPlan())
	err := g.Restore(Snapshot{Done: []SectionKey{
		{Round: round1, Topic: "Gone", Subtopic: "x", Section: "y"},
		{Round: round1, Topic: "Intro", Subtopic: "RoleFit", Section: "background"},
	}})
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.True(t, g.SubtopicCompleted(round1, "Intro", "RoleFit"))
}
