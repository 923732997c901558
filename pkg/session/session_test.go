package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewsim/pkg/config"
	"interviewsim/pkg/panelist"
	"interviewsim/pkg/plan"
)

func testPlan() *plan.Plan {
	return &plan.Plan{
		Title: "t",
		Participants: plan.Participants{
			Candidate: plan.Candidate{Name: "Sam", Profile: "Go developer", Role: "Backend Engineer"},
		},
	}
}

func TestNewAssignsSessionID(t *testing.T) {
	cfg := config.Default()
	cfg.SessionID = ""
	sc, err := New(testPlan(), cfg, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, sc.ID)
	assert.Equal(t, sc.ID, cfg.SessionID)
	assert.NotNil(t, sc.Metrics)
	assert.NotNil(t, sc.Tokens)
}

func TestNewKeepsSessionID(t *testing.T) {
	cfg := config.Default()
	cfg.SessionID = "fixed"
	sc, err := New(testPlan(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "fixed", sc.ID)
}

func TestNewRequiresPlan(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.Error(t, err)
}

func TestProfileReader(t *testing.T) {
	sc, err := New(testPlan(), nil, nil)
	require.NoError(t, err)

	var pr panelist.ProfileReader = sc
	assert.Equal(t, "Sam", pr.CandidateName())
	assert.Equal(t, "Go developer", pr.CandidateProfile())
	assert.Equal(t, "Backend Engineer", pr.AppliedRole())

	sc.Plan.Participants.Candidate.Role = ""
	assert.Equal(t, "the open position", pr.AppliedRole())
}
