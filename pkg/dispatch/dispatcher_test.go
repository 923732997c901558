package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewsim/pkg/actor"
	"interviewsim/pkg/proto"
)

type testMember struct {
	id     string
	inbox  *actor.Mailbox
	outbox *actor.Mailbox
}

func newTestMember(id string) *testMember {
	return &testMember{id: id, inbox: actor.NewMailbox(id+"/in", 8), outbox: actor.NewMailbox(id+"/out", 8)}
}

func (m *testMember) ID() string             { return m.id }
func (m *testMember) Inbox() *actor.Mailbox  { return m.inbox }
func (m *testMember) Outbox() *actor.Mailbox { return m.outbox }

type memorySink struct {
	mu   sync.Mutex
	envs []*proto.Envelope
}

func (s *memorySink) WriteEnvelope(env *proto.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envs = append(s.envs, env)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.envs)
}

func receive(t *testing.T, m *actor.Mailbox) *proto.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	env, ok, err := m.Receive(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	return env
}

func startDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
}

func TestFanOutToEveryOtherMember(t *testing.T) {
	sink := &memorySink{}
	d := NewDispatcher(sink, nil)
	orch, a, b := newTestMember("orchestrator"), newTestMember("a"), newTestMember("b")
	for _, m := range []*testMember{orch, a, b} {
		require.NoError(t, d.Attach(m))
	}
	startDispatcher(t, d)

	env := proto.Broadcast(proto.SignalStart, "ROUND_1")
	require.NoError(t, orch.outbox.Send(context.Background(), env))

	assert.Equal(t, env.ID, receive(t, a.inbox).ID)
	assert.Equal(t, env.ID, receive(t, b.inbox).ID)
	assert.Zero(t, orch.inbox.Len(), "sender does not receive its own envelope")

	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPerInboxFIFO(t *testing.T) {
	d := NewDispatcher(nil, nil)
	orch, a := newTestMember("orchestrator"), newTestMember("a")
	require.NoError(t, d.Attach(orch))
	require.NoError(t, d.Attach(a))
	startDispatcher(t, d)

	var ids []string
	for i := 0; i < 5; i++ {
		env := proto.NewEnvelope(proto.RoleOrchestrator, proto.RoleCandidate, &proto.MasterPayload{Round: "R"})
		ids = append(ids, env.ID)
		require.NoError(t, orch.outbox.Send(context.Background(), env))
	}
	for _, id := range ids {
		assert.Equal(t, id, receive(t, a.inbox).ID)
	}
}

func TestInvalidEnvelopeIsNotRouted(t *testing.T) {
	sink := &memorySink{}
	d := NewDispatcher(sink, nil)
	orch, a := newTestMember("orchestrator"), newTestMember("a")
	require.NoError(t, d.Attach(orch))
	require.NoError(t, d.Attach(a))
	startDispatcher(t, d)

	bad := proto.NewEnvelope(proto.RoleOrchestrator, proto.RoleAll, &proto.MasterPayload{})
	good := proto.Broadcast(proto.SignalEnd, "")
	require.NoError(t, orch.outbox.Send(context.Background(), bad))
	require.NoError(t, orch.outbox.Send(context.Background(), good))

	assert.Equal(t, good.ID, receive(t, a.inbox).ID)
	assert.Equal(t, 1, sink.count())
}

func TestClosedOutboxDetachesMember(t *testing.T) {
	d := NewDispatcher(nil, nil)
	orch, a := newTestMember("orchestrator"), newTestMember("a")
	require.NoError(t, d.Attach(orch))
	require.NoError(t, d.Attach(a))
	startDispatcher(t, d)

	a.outbox.Close()
	assert.Eventually(t, func() bool { return len(d.Members()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, a.inbox.Closed())

	// Routing to the detached member is silently skipped.
	require.NoError(t, orch.outbox.Send(context.Background(), proto.Broadcast(proto.SignalEnd, "")))
}

func TestFatalErrorDetaches(t *testing.T) {
	d := NewDispatcher(nil, nil)
	a, b := newTestMember("a"), newTestMember("b")
	require.NoError(t, d.Attach(a))
	require.NoError(t, d.Attach(b))
	startDispatcher(t, d)

	d.ReportError("a", errors.New("flaky"), Warn)
	d.ReportError("b", errors.New("broken"), Fatal)

	assert.Eventually(t, func() bool {
		m := d.Members()
		return len(m) == 1 && m[0] == "a"
	}, time.Second, 5*time.Millisecond)
}

func TestAttachRules(t *testing.T) {
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.Attach(newTestMember("a")))
	assert.Error(t, d.Attach(newTestMember("a")))

	startDispatcher(t, d)
	assert.Error(t, d.Start(context.Background()))

	// Late attachment gets a forwarder.
	late := newTestMember("late")
	require.NoError(t, d.Attach(late))
	env := proto.Broadcast(proto.SignalStart, "")
	require.NoError(t, late.outbox.Send(context.Background(), env))
	assert.Equal(t, env.ID, receive(t, d.members["a"].member.Inbox()).ID)
}

func TestStopClosesInboxes(t *testing.T) {
	d := NewDispatcher(nil, nil)
	a := newTestMember("a")
	require.NoError(t, d.Attach(a))
	require.NoError(t, d.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	assert.True(t, a.inbox.Closed())
	assert.NoError(t, d.Stop(ctx))
	assert.Equal(t, false, d.Stats()["running"])
}

func TestRoundTripThroughActor(t *testing.T) {
	d := NewDispatcher(nil, nil)
	orch := newTestMember("orchestrator")
	aliceID := actor.Identity{Role: proto.RolePanelist, Name: "Alice", Round: "ROUND_1"}
	alice := actor.New(actor.Config{Identity: aliceID}, echoReactor{})
	require.NoError(t, d.Attach(orch))
	require.NoError(t, d.Attach(alice))
	startDispatcher(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = alice.Run(ctx) }()

	turn := proto.NewEnvelope(proto.RoleOrchestrator, proto.RolePanelist, &proto.MasterPayload{
		Purpose: proto.PurposeTurn, Round: "ROUND_1", Speaker: "Alice", Section: "greet",
	})
	require.NoError(t, orch.outbox.Send(ctx, turn))

	reply := receive(t, orch.inbox)
	rp, ok := reply.Payload.(*proto.ReplyPayload)
	require.True(t, ok)
	assert.Equal(t, "Alice", rp.Speaker)
	assert.Equal(t, []string{"echo greet"}, rp.Lines)

	require.NoError(t, orch.outbox.Send(ctx, proto.Broadcast(proto.SignalEnd, "")))
	select {
	case <-alice.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("actor did not stop after END")
	}
	assert.Eventually(t, func() bool { return len(d.Members()) == 1 }, time.Second, 5*time.Millisecond)
}

type echoReactor struct{}

func (echoReactor) React(_ context.Context, msg *proto.MasterPayload) (*proto.ReplyPayload, error) {
	return &proto.ReplyPayload{Lines: []string{"echo " + msg.Section}}, nil
}
