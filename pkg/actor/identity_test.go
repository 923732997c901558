package actor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"interviewsim/pkg/proto"
)

func TestRoutingFilterPanelistRoundAndName(t *testing.T) {
	env := proto.NewEnvelope(proto.RoleOrchestrator, proto.RolePanelist, &proto.MasterPayload{
		Round:   "ROUND_2",
		Speaker: "Alice",
	})

	actors := []struct {
		id     Identity
		accept bool
		reason string
	}{
		{Identity{Role: proto.RolePanelist, Name: "Alice", Round: "ROUND_2"}, true, DropNone},
		{Identity{Role: proto.RolePanelist, Name: "Alice", Round: "ROUND_1"}, false, DropRound},
		{Identity{Role: proto.RolePanelist, Name: "Bob", Round: "ROUND_2"}, false, DropName},
		{Identity{Role: proto.RoleCandidate, Name: "Sam", Round: "ROUND_2"}, false, DropReceiver},
		{Identity{Role: proto.RoleActivityMonitor, Name: "monitor", Round: "ROUND_2"}, false, DropReceiver},
		{Identity{Role: proto.RoleEvaluator, Name: "evaluator", Round: "ROUND_2"}, false, DropReceiver},
	}

	for _, a := range actors {
		ok, reason := a.id.Accepts(env)
		assert.Equal(t, a.accept, ok, a.id.String())
		assert.Equal(t, a.reason, reason, a.id.String())
	}
}

func TestRoutingFilterSender(t *testing.T) {
	id := Identity{Role: proto.RoleCandidate, Name: "Sam", Round: "ROUND_1"}

	reply := proto.NewEnvelope(proto.RolePanelist, proto.RoleCandidate, &proto.MasterPayload{Round: "ROUND_1"})
	ok, reason := id.Accepts(reply)
	assert.False(t, ok)
	assert.Equal(t, DropSender, reason)

	ok, _ = id.Accepts(nil)
	assert.False(t, ok)
}

func TestRoutingFilterBroadcast(t *testing.T) {
	id := Identity{Role: proto.RolePanelist, Name: "Alice", Round: "ROUND_1"}

	ok, _ := id.Accepts(proto.Broadcast(proto.SignalRoundChanged, "ROUND_2"))
	assert.True(t, ok, "broadcasts are accepted regardless of round")

	bad := proto.NewEnvelope(proto.RoleOrchestrator, proto.RoleAll, &proto.MasterPayload{Round: "ROUND_1", Speaker: "Alice"})
	ok, reason := id.Accepts(bad)
	assert.False(t, ok)
	assert.Equal(t, DropPayload, reason)
}

func TestRoutingFilterSingleInstanceIgnoresName(t *testing.T) {
	id := Identity{Role: proto.RoleCandidate, Name: "Sam", Round: "ROUND_1"}
	env := proto.NewEnvelope(proto.RoleOrchestrator, proto.RoleCandidate, &proto.MasterPayload{Round: "ROUND_1", Speaker: "whoever"})
	ok, _ := id.Accepts(env)
	assert.True(t, ok)
}

func TestRoutingFilterRejectsRepliesAndForeignSystemRounds(t *testing.T) {
	id := Identity{Role: proto.RoleEvaluator, Name: "evaluator", Round: "ROUND_1"}

	reply := proto.NewEnvelope(proto.RoleOrchestrator, proto.RoleEvaluator, &proto.ReplyPayload{Round: "ROUND_1"})
	ok, reason := id.Accepts(reply)
	assert.False(t, ok)
	assert.Equal(t, DropPayload, reason)

	direct := proto.NewEnvelope(proto.RoleOrchestrator, proto.RoleEvaluator, &proto.SystemPayload{Signal: proto.SignalStart, Round: "ROUND_2"})
	ok, reason = id.Accepts(direct)
	assert.False(t, ok)
	assert.Equal(t, DropRound, reason)
}

func TestIdentityString(t *testing.T) {
	assert.Equal(t, "PANELIST:Alice@ROUND_1", Identity{Role: proto.RolePanelist, Name: "Alice", Round: "ROUND_1"}.String())
	assert.Equal(t, "CANDIDATE@ROUND_1", Identity{Role: proto.RoleCandidate, Name: "Sam", Round: "ROUND_1"}.String())
}

func TestIdentityKey(t *testing.T) {
	r1 := Identity{Role: proto.RolePanelist, Name: "Alice", Round: "ROUND_1"}
	r2 := Identity{Role: proto.RolePanelist, Name: "Alice", Round: "ROUND_2"}
	assert.NotEqual(t, r1.Key(), r2.Key(), "one panelist name may serve several rounds")
	assert.Equal(t, "CANDIDATE", Identity{Role: proto.RoleCandidate, Name: "Sam", Round: "ROUND_1"}.Key())
	assert.Equal(t,
		Identity{Role: proto.RoleEvaluator, Round: "ROUND_1"}.Key(),
		Identity{Role: proto.RoleEvaluator, Round: "ROUND_2"}.Key())
}
