// Package kernel wires one interview session: the session context, the generation stack,
// the actors, the dispatcher, the orchestrator and the persistence worker. It owns their
// lifecycle from start to drained shutdown.
package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"interviewsim/internal/llmimpl"
	"interviewsim/internal/statusserver"
	"interviewsim/pkg/actor"
	"interviewsim/pkg/candidate"
	"interviewsim/pkg/config"
	"interviewsim/pkg/dispatch"
	"interviewsim/pkg/evaluator"
	"interviewsim/pkg/eventlog"
	"interviewsim/pkg/generate"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/memory"
	"interviewsim/pkg/metrics"
	"interviewsim/pkg/monitor"
	"interviewsim/pkg/orchestrator"
	"interviewsim/pkg/panelist"
	"interviewsim/pkg/persistence"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/policy"
	"interviewsim/pkg/progress"
	"interviewsim/pkg/session"
	"interviewsim/pkg/transcript"
)

// ErrNotResumable is returned when --resume names a session that finished or never existed.
var ErrNotResumable = errors.New("session cannot be resumed")

// Options are the per-run switches that do not live in the config file.
type Options struct {
	// Resume continues cfg.SessionID from its last checkpoint.
	Resume bool
	// Human reads candidate answers from Input instead of generating them.
	Human bool
	Input *os.File
	// Output receives the live transcript. Defaults to os.Stdout.
	Output io.Writer
	// Store overrides the configured persistence backend.
	Store persistence.Store
}

// Kernel owns the running session.
type Kernel struct {
	ctx    context.Context //nolint:containedctx // kernel lifecycle
	cancel context.CancelFunc

	Config  *config.Config
	Plan    *plan.Plan
	Session *session.Context
	Logger  *logx.Logger

	Registry     *prometheus.Registry
	Dispatcher   *dispatch.Dispatcher
	Orchestrator *orchestrator.Orchestrator
	Monitor      *monitor.Monitor
	Evaluator    *evaluator.Evaluator
	EventLog     *eventlog.Writer
	Status       *statusserver.Server

	Store                 persistence.Store
	PersistenceChannel    chan *persistence.Request
	persistenceWorkerDone chan struct{}
	persistMu             sync.Mutex

	progress *progress.Graph
	memory   *memory.Graph
	actors   []*actor.Actor
	resumed  bool
	running  bool
}

// NewKernel builds every component for one session. Nothing runs until Run.
func NewKernel(parent context.Context, cfg *config.Config, p *plan.Plan, opts Options) (*Kernel, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Resume && cfg.SessionID == "" {
		return nil, fmt.Errorf("resume: %w", config.ErrNoSessionID)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	logx.SetDebugConfig(cfg.Debug.Enabled, cfg.Debug.Domains)

	ctx, cancel := context.WithCancel(parent)
	k := &Kernel{
		ctx:      ctx,
		cancel:   cancel,
		Config:   cfg,
		Plan:     p,
		Logger:   logx.NewLogger("kernel").WithSession(cfg.SessionID),
		Registry: prometheus.NewRegistry(),
	}

	if err := k.initializeServices(opts); err != nil {
		k.closeResources()
		cancel()
		return nil, fmt.Errorf("failed to initialize kernel services: %w", err)
	}
	return k, nil
}

func (k *Kernel) initializeServices(opts Options) error {
	k.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(k.Registry, k.Config.SessionID)

	sc, err := session.New(k.Plan, k.Config, rec)
	if err != nil {
		return err
	}
	k.Session = sc

	if err := k.initializeStore(opts); err != nil {
		return err
	}
	if err := k.initializeGraphs(opts.Resume); err != nil {
		return err
	}

	if k.Config.EventLog.Enabled {
		k.EventLog, err = eventlog.NewWriter(k.Config.EventLog.Dir, sc.ID)
		if err != nil {
			return fmt.Errorf("failed to create event log: %w", err)
		}
	}
	var sink dispatch.EventSink
	if k.EventLog != nil {
		sink = k.EventLog
	}
	k.Dispatcher = dispatch.NewDispatcher(sink, rec)

	client, err := llmimpl.New(&k.Config.LLM, rec)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	gen := generate.New(client, sc.Tokens, generate.Config{
		MaxTokens:     config.ClampMaxTokens(client.ModelName(), k.Config.LLM.MaxTokens),
		Temperature:   k.Config.LLM.Temperature,
		HistoryTokens: k.Config.LLM.ContextTokens / 2,
	})

	if err := k.initializeActors(gen, opts); err != nil {
		return err
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	speaker, judge, summarizer := k.policies(gen)
	k.Orchestrator, err = orchestrator.New(orchestrator.Options{
		Session:            sc,
		Progress:           k.progress,
		Memory:             k.memory,
		Speaker:            speaker,
		Judge:              judge,
		Summarizer:         summarizer,
		Activity:           k.Monitor,
		Evaluator:          k.Evaluator != nil,
		Observer:           transcript.NewPrinter(out),
		Checkpointer:       k,
		ReplyTimeout:       k.Config.ReplyTimeout,
		MaxTurnsPerSection: k.Config.Policy.MaxTurnsPerSection,
		ContextTokens:      k.Config.LLM.ContextTokens,
		MailboxSize:        k.Config.MailboxSize,
	})
	if err != nil {
		return err
	}
	if err := k.Dispatcher.Attach(k.Orchestrator); err != nil {
		return err
	}
	for _, a := range k.actors {
		if err := k.Dispatcher.Attach(a); err != nil {
			return err
		}
	}

	if k.Config.Status.Enabled {
		k.Status = statusserver.New(k.Orchestrator, k.Registry)
	}

	k.Logger.Info("kernel ready: %d actors, backend %s", len(k.actors), k.backendName())
	return nil
}

// initializeStore opens the configured backend.
func (k *Kernel) initializeStore(opts Options) error {
	if opts.Store != nil {
		k.Store = opts.Store
	} else {
		st, err := OpenStore(k.ctx, &k.Config.Persistence)
		if err != nil {
			return err
		}
		k.Store = st
	}
	if k.Store != nil {
		k.PersistenceChannel = make(chan *persistence.Request, 100)
	}
	return nil
}

// OpenStore opens the backend named by cfg. BackendNone yields a nil store.
func OpenStore(ctx context.Context, cfg *config.PersistenceConfig) (persistence.Store, error) {
	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil //nolint:nilnil // no backend is a valid configuration
	case config.BackendSQLite:
		st, err := persistence.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	case config.BackendRedis:
		return openRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", cfg.Backend)
	}
}

// initializeGraphs builds fresh graphs, or restores them from the last checkpoint.
func (k *Kernel) initializeGraphs(resume bool) error {
	k.progress = progress.New(k.Plan)
	k.memory = memory.New()
	k.memory.Populate(k.Plan)
	if !resume {
		return nil
	}
	if k.Store == nil {
		return fmt.Errorf("resume needs a persistence backend: %w", ErrNotResumable)
	}

	id := k.Session.ID
	sess, err := k.Store.GetSession(k.ctx, id)
	if err != nil {
		return fmt.Errorf("resume %s: %w", id, err)
	}
	if !sess.Resumable() {
		return fmt.Errorf("resume %s (status %s): %w", id, sess.Status, ErrNotResumable)
	}

	var prog progress.Snapshot
	found, err := k.loadJSON(persistence.KeyProgress, &prog)
	if err != nil {
		return err
	}
	if found {
		if err := k.progress.Restore(prog); err != nil {
			k.Logger.Warn("progress checkpoint only partly applies to this plan: %v", err)
		}
	}
	var mem memory.Snapshot
	if _, err := k.loadJSON(persistence.KeyMemory, &mem); err != nil {
		return err
	}
	k.memory.Restore(mem)

	k.resumed = true
	k.Logger.Info("resuming session %s with %d completed sections", id, len(prog.Done))
	return nil
}

func (k *Kernel) loadJSON(key string, v any) (bool, error) {
	blob, err := k.Store.LoadRecord(k.ctx, k.Session.ID, key)
	if errors.Is(err, persistence.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal(blob, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// initializeActors creates one actor per panelist plus the candidate, the activity monitor
// and the evaluator.
func (k *Kernel) initializeActors(gen *generate.Generator, opts Options) error {
	rounds := k.Plan.RoundOrder()
	if len(rounds) == 0 {
		return fmt.Errorf("plan has no rounds")
	}
	first := rounds[0]
	cfg := actor.Config{MailboxSize: k.Config.MailboxSize, Metrics: k.Session.Metrics, Rounds: rounds}

	for _, spec := range k.Plan.Participants.Panelists {
		k.actors = append(k.actors, panelist.New(spec, gen, k.Session).NewActor(cfg))
	}

	var source candidate.AnswerSource
	if opts.Human {
		in := opts.Input
		if in == nil {
			in = os.Stdin
		}
		source = candidate.NewConsoleAnswers(in, os.Stdout)
	} else {
		source = candidate.NewGeneratedAnswers(gen, k.Plan.Participants.Candidate)
	}
	k.actors = append(k.actors, candidate.New(k.Plan.Participants.Candidate, source).NewActor(cfg, first))

	var assessor monitor.Assessor
	if provider, err := k.Config.LLM.EffectiveProvider(); err == nil && provider != config.ProviderScripted {
		assessor = monitor.NewModelAssessor(gen)
	}
	k.Monitor = monitor.New(assessor)
	k.actors = append(k.actors, k.Monitor.NewActor(cfg, first))

	k.Evaluator = evaluator.New(gen)
	k.actors = append(k.actors, k.Evaluator.NewActor(cfg, first))
	return nil
}

func (k *Kernel) policies(gen *generate.Generator) (policy.SpeakerPolicy, policy.CompletionJudge, policy.Summarizer) {
	pc := k.Config.Policy
	budget := policy.TurnBudget{CandidateReplies: pc.CandidateReplies}

	var speaker policy.SpeakerPolicy = policy.NewRoundRobin()
	if pc.Speaker == config.SpeakerModel {
		speaker = policy.NewModelSpeaker(gen)
	}
	var judge policy.CompletionJudge = budget
	if pc.Judge == config.JudgeModel {
		judge = policy.NewModelJudge(gen, budget)
	}
	var summarizer policy.Summarizer = policy.Extractive{}
	if pc.Summarizer == config.SummarizerModel {
		summarizer = policy.NewModelSummarizer(gen)
	}
	return speaker, judge, summarizer
}

// Start brings up the dispatcher, the persistence worker, the session record and the
// status server, in that order.
func (k *Kernel) Start() error {
	if k.running {
		return fmt.Errorf("kernel already running")
	}

	if err := k.Dispatcher.Start(k.ctx); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	k.startPersistenceWorker()

	if err := k.createSessionRecord(); err != nil {
		return fmt.Errorf("failed to create session record: %w", err)
	}

	if k.Status != nil {
		if err := k.Status.Start(k.ctx, k.Config.Status.Addr); err != nil {
			k.Logger.Warn("status server disabled: %v", err)
		}
	}

	k.running = true
	return nil
}

// Run starts the kernel, drives the interview to its end and shuts everything down.
// The returned report is valid even when err is non-nil.
func (k *Kernel) Run() (orchestrator.Report, error) {
	if err := k.Start(); err != nil {
		k.running = true
		_ = k.Stop()
		return orchestrator.Report{}, err
	}

	for _, a := range k.actors {
		go func(a *actor.Actor) {
			if err := a.Run(k.ctx); err != nil && !errors.Is(err, context.Canceled) {
				k.Dispatcher.ReportError(a.ID(), err, dispatch.Warn)
			}
		}(a)
	}

	runErr := k.Orchestrator.Run(k.ctx)
	k.waitForActors(10 * time.Second)

	if err := k.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	return k.Orchestrator.Report(), runErr
}

func (k *Kernel) waitForActors(timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for _, a := range k.actors {
		select {
		case <-a.Done():
		case <-deadline.C:
			k.Logger.Warn("actor %s did not stop within %s", a.ID(), timeout)
			return
		}
	}
}

// Stop gracefully shuts down all kernel services.
func (k *Kernel) Stop() error {
	if !k.running {
		return nil
	}

	k.cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := k.Dispatcher.Stop(stopCtx); err != nil {
		k.Logger.Error("Error stopping dispatcher: %v", err)
	}
	stopCancel()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := k.DrainPersistenceQueue(drainCtx); err != nil {
		k.Logger.Warn("Persistence queue drain issue: %v", err)
	}
	drainCancel()

	k.closeResources()
	if k.memory != nil {
		k.memory.Clear()
	}
	k.running = false
	k.Logger.Info("kernel stopped after %s", k.Session.Elapsed().Round(time.Second))
	return nil
}

func (k *Kernel) closeResources() {
	if k.EventLog != nil {
		if err := k.EventLog.Close(); err != nil {
			k.Logger.Error("Error closing event log: %v", err)
		}
		k.EventLog = nil
	}
	if k.Store != nil {
		if err := k.Store.Close(); err != nil {
			k.Logger.Error("Error closing store: %v", err)
		}
		k.Store = nil
	}
}

// Resumed reports whether graphs were restored from a checkpoint.
func (k *Kernel) Resumed() bool {
	return k.resumed
}

// Progress returns the session's progress graph.
func (k *Kernel) Progress() *progress.Graph {
	return k.progress
}

// Memory returns the session's memory graph.
func (k *Kernel) Memory() *memory.Graph {
	return k.memory
}

// Actors returns every reactive actor.
func (k *Kernel) Actors() []*actor.Actor {
	return k.actors
}

func (k *Kernel) backendName() string {
	if k.Store == nil {
		return config.BackendNone
	}
	if s, ok := k.Store.(fmt.Stringer); ok {
		return s.String()
	}
	return k.Config.Persistence.Backend
}
