package plan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlan = `
title: Test Loop
participants:
  candidate:
    name: Sam
  panelists:
    - name: Alice
      round: ROUND_1
    - name: Bob
      round: ROUND_2
rounds:
  - round: ROUND_1
    topics:
      - name: Intro
        time_budget_minutes: 10
        evaluation_criteria: [communication]
        subtopics:
          - name: Welcome
            time_budget_minutes: 4
            sections: [greet, overview]
          - name: RoleFit
            sections: [background]
  - round: ROUND_2
    topics:
      - name: Empty
`

func TestParseValidPlan(t *testing.T) {
	p, err := Parse([]byte(validPlan))
	require.NoError(t, err)

	assert.Equal(t, "Test Loop", p.Title)
	assert.Equal(t, []Round{"ROUND_1", "ROUND_2"}, p.RoundOrder())

	intro, ok := p.Topic("ROUND_1", "Intro")
	require.True(t, ok)
	assert.Equal(t, []string{"Welcome", "RoleFit"}, intro.SubtopicNames())
	assert.Equal(t, 10*time.Minute, intro.TimeBudget())

	welcome, ok := intro.Subtopic("Welcome")
	require.True(t, ok)
	assert.Equal(t, []string{"greet", "overview"}, welcome.Sections)
	assert.Equal(t, 4*time.Minute, welcome.TimeBudget())

	roleFit, _ := intro.Subtopic("RoleFit")
	assert.Zero(t, roleFit.TimeBudget())

	_, ok = p.Topic("ROUND_1", "Missing")
	assert.False(t, ok)
	_, ok = p.Topic("ROUND_9", "Intro")
	assert.False(t, ok)

	panel := p.PanelistsFor("ROUND_2")
	require.Len(t, panel, 1)
	assert.Equal(t, "Bob", panel[0].Name)
}

func TestParseRejectsEmptyInput(t *testing.T) {
	_, err := Parse([]byte("  \n"))
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("title: x\nroundz: []\n"))
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
}

func TestValidateProblems(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
		want string
	}{
		{
			name: "no rounds",
			plan: Plan{},
			want: "plan declares no rounds",
		},
		{
			name: "round without topics",
			plan: Plan{
				Rounds:       []RoundSpec{{Round: "R1"}},
				Participants: Participants{Candidate: Candidate{Name: "c"}, Panelists: []Panelist{{Name: "p", Round: "R1"}}},
			},
			want: `round "R1" declares no topics`,
		},
		{
			name: "round without panelist",
			plan: Plan{
				Rounds:       []RoundSpec{{Round: "R1", Topics: []TopicSpec{{Name: "t"}}}},
				Participants: Participants{Candidate: Candidate{Name: "c"}},
			},
			want: `round "R1" has no panelist`,
		},
		{
			name: "duplicate topic",
			plan: Plan{
				Rounds:       []RoundSpec{{Round: "R1", Topics: []TopicSpec{{Name: "t"}, {Name: "t"}}}},
				Participants: Participants{Candidate: Candidate{Name: "c"}, Panelists: []Panelist{{Name: "p", Round: "R1"}}},
			},
			want: `round "R1": duplicate topic "t"`,
		},
		{
			name: "duplicate section",
			plan: Plan{
				Rounds: []RoundSpec{{Round: "R1", Topics: []TopicSpec{{
					Name:      "t",
					Subtopics: []SubtopicSpec{{Name: "s", Sections: []string{"a", "a"}}},
				}}}},
				Participants: Participants{Candidate: Candidate{Name: "c"}, Panelists: []Panelist{{Name: "p", Round: "R1"}}},
			},
			want: `subtopic "s": duplicate section "a"`,
		},
		{
			name: "panelist in unknown round",
			plan: Plan{
				Rounds: []RoundSpec{{Round: "R1", Topics: []TopicSpec{{Name: "t"}}}},
				Participants: Participants{Candidate: Candidate{Name: "c"}, Panelists: []Panelist{
					{Name: "p", Round: "R1"}, {Name: "q", Round: "R7"},
				}},
			},
			want: `panelist "q" bound to unknown round "R7"`,
		},
		{
			name: "missing candidate",
			plan: Plan{
				Rounds:       []RoundSpec{{Round: "R1", Topics: []TopicSpec{{Name: "t"}}}},
				Participants: Participants{Panelists: []Panelist{{Name: "p", Round: "R1"}}},
			},
			want: "candidate name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(&tt.plan)
			assert.False(t, res.Passed)
			assert.Contains(t, res.Blocking, tt.want)
		})
	}
}

func TestValidationErrorMatchesSentinel(t *testing.T) {
	_, err := Parse([]byte("title: only a title\n"))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems, "plan declares no rounds")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadAndMarshalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPlan), 0o600))

	p, err := Load(path)
	require.NoError(t, err)

	out, err := Marshal(p)
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.False(t, IsInvalid(err))
}

func TestExamplePlanIsValid(t *testing.T) {
	p, err := Load(filepath.Join("..", "..", "configs", "plan.example.yaml"))
	require.NoError(t, err)
	assert.Len(t, p.Rounds, 2)
	assert.Len(t, p.PanelistsFor("ROUND_2"), 2)
}
