package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewsim/pkg/config"
	"interviewsim/pkg/eventlog"
	"interviewsim/pkg/orchestrator"
	"interviewsim/pkg/persistence"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/progress"
)

func testPlan() *plan.Plan {
	return &plan.Plan{
		Title: "kernel",
		Rounds: []plan.RoundSpec{
			{Round: "ROUND_1", Topics: []plan.TopicSpec{{
				Name:               "Intro",
				EvaluationCriteria: []string{"communication"},
				Subtopics: []plan.SubtopicSpec{
					{Name: "Welcome", Sections: []string{"greet", "overview"}},
				},
			}}},
		},
		Participants: plan.Participants{
			Candidate: plan.Candidate{Name: "Sam", Role: "Backend Engineer"},
			Panelists: []plan.Panelist{{Name: "Alice", Round: "ROUND_1"}},
		},
	}
}

// createTestConfig returns a scripted-provider config writing into dir.
func createTestConfig(dir, backend string) *config.Config {
	cfg := config.Default()
	cfg.SessionID = "kernel-test"
	cfg.ReplyTimeout = 5 * time.Second
	cfg.Persistence.Backend = backend
	cfg.Persistence.SQLitePath = filepath.Join(dir, "sessions.db")
	cfg.EventLog.Dir = filepath.Join(dir, "logs")
	cfg.Status.Enabled = false
	return cfg
}

func runKernel(t *testing.T, cfg *config.Config, opts Options) (*Kernel, orchestrator.Report) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	opts.Output = &out
	k, err := NewKernel(ctx, cfg, testPlan(), opts)
	require.NoError(t, err)

	report, err := k.Run()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Alice:")
	return k, report
}

func TestNewKernel(t *testing.T) {
	cfg := createTestConfig(t.TempDir(), config.BackendNone)
	k, err := NewKernel(context.Background(), cfg, testPlan(), Options{Output: &bytes.Buffer{}})
	require.NoError(t, err)

	assert.NotNil(t, k.Dispatcher)
	assert.NotNil(t, k.Orchestrator)
	assert.NotNil(t, k.Monitor)
	assert.NotNil(t, k.Evaluator)
	assert.Nil(t, k.Store)
	assert.Nil(t, k.PersistenceChannel)
	assert.Len(t, k.Actors(), 4, "panelist, candidate, monitor, evaluator")
	assert.ElementsMatch(t,
		[]string{orchestrator.ID, "PANELIST:Alice@ROUND_1", "CANDIDATE", "ACTIVITY_MONITOR", "EVALUATOR"},
		k.Dispatcher.Members())
	require.NoError(t, k.Stop())
}

func TestNewKernelGeneratesSessionID(t *testing.T) {
	cfg := createTestConfig(t.TempDir(), config.BackendNone)
	cfg.SessionID = ""
	k, err := NewKernel(context.Background(), cfg, testPlan(), Options{Output: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.NotEmpty(t, k.Session.ID)
	assert.Equal(t, k.Session.ID, cfg.SessionID)
}

func TestRunWithoutPersistence(t *testing.T) {
	cfg := createTestConfig(t.TempDir(), config.BackendNone)
	k, report := runKernel(t, cfg, Options{})

	assert.True(t, report.Completed)
	assert.Equal(t, 4, report.Turns)
	require.Len(t, report.Verdicts, 1)
	assert.Equal(t, "Intro", report.Verdicts[0].Topic)
	assert.Len(t, k.Evaluator.Evaluations(), 1)
	for _, a := range k.Actors() {
		select {
		case <-a.Done():
		default:
			t.Fatalf("actor %s still running", a.ID())
		}
	}
}

func TestRunPersistsCheckpoints(t *testing.T) {
	dir := t.TempDir()
	cfg := createTestConfig(dir, config.BackendSQLite)
	_, report := runKernel(t, cfg, Options{})
	require.True(t, report.Completed)

	ctx := context.Background()
	st, err := persistence.Open(ctx, cfg.Persistence.SQLitePath)
	require.NoError(t, err)
	defer st.Close()

	sess, err := st.GetSession(ctx, "kernel-test")
	require.NoError(t, err)
	assert.Equal(t, persistence.SessionStatusCompleted, sess.Status)
	assert.NotNil(t, sess.EndedAt)

	blob, err := st.LoadRecord(ctx, "kernel-test", persistence.KeyProgress)
	require.NoError(t, err)
	var snap progress.Snapshot
	require.NoError(t, json.Unmarshal(blob, &snap))
	assert.Len(t, snap.Done, 2)

	blob, err = st.LoadRecord(ctx, "kernel-test", persistence.KeyReport)
	require.NoError(t, err)
	var saved orchestrator.Report
	require.NoError(t, json.Unmarshal(blob, &saved))
	assert.True(t, saved.Completed)

	_, err = st.LoadRecord(ctx, "kernel-test", persistence.KeyEvaluations)
	require.NoError(t, err)

	envs, err := eventlog.ReadEnvelopes(filepath.Join(cfg.EventLog.Dir, eventlog.FileName("kernel-test")))
	require.NoError(t, err)
	assert.NotEmpty(t, envs)
}

func TestResumeContinuesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cfg := createTestConfig(dir, config.BackendSQLite)
	ctx := context.Background()

	st, err := persistence.Open(ctx, cfg.Persistence.SQLitePath)
	require.NoError(t, err)
	require.NoError(t, st.CreateSession(ctx, "kernel-test", "{}"))
	require.NoError(t, st.UpdateSessionStatus(ctx, "kernel-test", persistence.SessionStatusShutdown))
	blob, err := json.Marshal(progress.Snapshot{Done: []progress.SectionKey{
		{Round: "ROUND_1", Topic: "Intro", Subtopic: "Welcome", Section: "greet"},
	}})
	require.NoError(t, err)
	require.NoError(t, st.AppendRecord(ctx, "kernel-test", persistence.KeyProgress, blob))
	require.NoError(t, st.Close())

	k, report := runKernel(t, cfg, Options{Resume: true})
	assert.True(t, k.Resumed())
	assert.True(t, report.Completed)
	assert.Equal(t, 2, report.Turns, "only the open section is run")
}

func TestResumeRejectsFinishedSession(t *testing.T) {
	dir := t.TempDir()
	cfg := createTestConfig(dir, config.BackendSQLite)
	ctx := context.Background()

	st, err := persistence.Open(ctx, cfg.Persistence.SQLitePath)
	require.NoError(t, err)
	require.NoError(t, st.CreateSession(ctx, "kernel-test", "{}"))
	require.NoError(t, st.UpdateSessionStatus(ctx, "kernel-test", persistence.SessionStatusCompleted))
	require.NoError(t, st.Close())

	_, err = NewKernel(ctx, cfg, testPlan(), Options{Resume: true, Output: &bytes.Buffer{}})
	require.ErrorIs(t, err, ErrNotResumable)
}

func TestResumeNeedsBackendAndID(t *testing.T) {
	cfg := createTestConfig(t.TempDir(), config.BackendNone)
	_, err := NewKernel(context.Background(), cfg, testPlan(), Options{Resume: true, Output: &bytes.Buffer{}})
	require.ErrorIs(t, err, ErrNotResumable)

	cfg.SessionID = ""
	_, err = NewKernel(context.Background(), cfg, testPlan(), Options{Resume: true, Output: &bytes.Buffer{}})
	require.ErrorIs(t, err, config.ErrNoSessionID)
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.PersistenceConfig{Backend: "etcd"})
	require.Error(t, err)

	st, err := OpenStore(context.Background(), &config.PersistenceConfig{Backend: config.BackendNone})
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestDrainPersistenceQueueIdempotent(t *testing.T) {
	cfg := createTestConfig(t.TempDir(), config.BackendSQLite)
	k, err := NewKernel(context.Background(), cfg, testPlan(), Options{Output: &bytes.Buffer{}})
	require.NoError(t, err)
	require.NoError(t, k.Start())

	k.Checkpoint(context.Background(), &orchestrator.Checkpoint{SessionID: cfg.SessionID, Reason: "test"})
	require.NoError(t, k.DrainPersistenceQueue(context.Background()))
	require.NoError(t, k.DrainPersistenceQueue(context.Background()))

	// Checkpoints after the drain are dropped rather than panicking on a closed channel.
	k.Checkpoint(context.Background(), &orchestrator.Checkpoint{SessionID: cfg.SessionID, Final: true})
	require.NoError(t, k.Stop())

	_, err = os.Stat(cfg.Persistence.SQLitePath)
	require.NoError(t, err)
}
