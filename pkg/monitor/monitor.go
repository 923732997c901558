// Package monitor implements the activity monitor actor. It acknowledges every code
// submission at once and assesses it in a background pipeline that runs outside the
// orchestrator's turn order.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"interviewsim/pkg/actor"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/proto"
)

// DefaultKeep is how many progress notes the monitor retains.
const DefaultKeep = 5

// Monitor is the activity monitor reactor. Its progress notes are written by background
// pipelines and read by the reaction handler and the orchestrator, all under mu.
type Monitor struct {
	assessor Assessor
	keep     int
	logger   *logx.Logger

	mu          sync.Mutex
	progress    []string
	submissions int
	bgCtx       context.Context
	cancel      context.CancelFunc

	wg sync.WaitGroup
}

// New creates a monitor. A nil assessor uses HeuristicAssessor.
func New(assessor Assessor) *Monitor {
	if assessor == nil {
		assessor = HeuristicAssessor{}
	}
	bgCtx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		assessor: assessor,
		keep:     DefaultKeep,
		logger:   logx.NewLogger("activity-monitor"),
		bgCtx:    bgCtx,
		cancel:   cancel,
	}
}

// NewActor wraps m in a session-wide actor starting in round.
func (m *Monitor) NewActor(cfg actor.Config, round plan.Round) *actor.Actor {
	cfg.Identity = actor.Identity{Role: proto.RoleActivityMonitor, Round: round}
	cfg.Scope = actor.SessionWide
	return actor.New(cfg, m)
}

// React implements actor.Reactor. ACTIVITY_UPDATE turns start a pipeline over the submitted
// code; every turn is answered with the progress known right now.
func (m *Monitor) React(_ context.Context, msg *proto.MasterPayload) (*proto.ReplyPayload, error) {
	m.mu.Lock()
	current := m.snapshotLocked()
	if msg.Purpose == proto.PurposeActivityUpdate && msg.CandidateCode != "" {
		m.submissions++
		n := m.submissions
		bgCtx := m.bgCtx
		m.mu.Unlock()

		m.wg.Add(1)
		go m.run(bgCtx, n, msg.Topic, msg.CandidateCode)
		return &proto.ReplyPayload{Lines: append([]string{fmt.Sprintf("Received submission %d for %s.", n, msg.Topic)}, current...)}, nil
	}
	m.mu.Unlock()

	if len(current) == 0 {
		current = []string{"No activity recorded yet."}
	}
	return &proto.ReplyPayload{Lines: current}, nil
}

// run is the inspect, assess, record pipeline for one submission.
func (m *Monitor) run(ctx context.Context, n int, topic, code string) {
	defer m.wg.Done()
	start := time.Now()

	insp := Inspect(code)
	note, err := m.assessor.Assess(ctx, insp, code)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("assessment of submission %d failed, using heuristic: %v", n, err)
		note, _ = HeuristicAssessor{}.Assess(ctx, insp, code)
	}

	m.record(fmt.Sprintf("[%s #%d] %s", topic, n, note))
	logx.Debug(ctx, "monitor", "submission %d assessed in %s", n, time.Since(start))
}

func (m *Monitor) record(note string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, note)
	if len(m.progress) > m.keep {
		m.progress = m.progress[len(m.progress)-m.keep:]
	}
}

// Progress returns the latest progress notes, oldest first.
func (m *Monitor) Progress() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Monitor) snapshotLocked() []string {
	out := make([]string, len(m.progress))
	copy(out, m.progress)
	return out
}

// Wait blocks until every pipeline started so far has finished.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// OnEnd implements actor.EndHook: pending pipelines are cancelled and awaited.
func (m *Monitor) OnEnd() {
	m.cancel()
	m.wg.Wait()
	m.logger.Info("assessed %d submissions", m.Submissions())
}

// Submissions returns how many code submissions were received.
func (m *Monitor) Submissions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submissions
}
