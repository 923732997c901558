package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"interviewsim/pkg/memory"
	"interviewsim/pkg/policy"
	"interviewsim/pkg/progress"
	"interviewsim/pkg/proto"
)

// buildPayload copies the graph slices the speaker needs into a fresh payload. History
// is clipped to the context token budget: half for the subtopic dialog, a quarter each
// for the topic dialog and the completed-topic summaries.
func (o *Orchestrator) buildPayload(tn *progress.TopicNode, st *progress.SubtopicNode, d policy.Decision, remaining time.Duration) *proto.MasterPayload {
	r := o.cur.round
	counter := o.sess.Tokens

	p := &proto.MasterPayload{
		Purpose:             proto.PurposeTurn,
		Round:               r,
		Topic:               tn.Name(),
		TopicDescription:    tn.Spec().Description,
		Subtopic:            st.Name(),
		SubtopicDescription: st.Spec().Description,
		Section:             o.cur.section,
		Speaker:             d.Name,
		PreviousSpeaker:     o.cur.lastSpeaker,
		AddressPrevious:     d.AddressPrevious && o.cur.lastSpeaker != "",
		SubtopicDialog:      counter.ClipTurns(o.memory.DialogFor(r, tn.Name(), st.Name()), o.contextTokens/2),
		TopicDialog:         counter.ClipTurns(o.memory.AllDialogForTopic(r, tn.Name()), o.contextTokens/4),
		CompletedSummaries:  counter.ClipStrings(o.memory.SummaryForCompletedTopics(r, o.progress), o.contextTokens/4),
		TopicSummary:        o.memory.TopicSummary(r, tn.Name()),
		LastCompleted:       o.lastCompleted(tn),
		RemainingTime:       remaining,
		CandidateCode:       o.lastCode,
	}
	if o.activity != nil {
		p.ActivityProgress = o.activity.Progress()
	}
	return p
}

func (o *Orchestrator) lastCompleted(tn *progress.TopicNode) string {
	if st, ok := o.progress.LastCompletedSubtopic(o.cur.round, tn.Name()); ok {
		return tn.Name() + " / " + st.Name()
	}
	if prev, ok := o.progress.LastCompletedTopic(o.cur.round); ok {
		return prev.Name()
	}
	return ""
}

// send dispatches one turn and returns the envelope id its reply must carry.
func (o *Orchestrator) send(ctx context.Context, to proto.Role, p *proto.MasterPayload) (string, error) {
	env := proto.NewEnvelope(proto.RoleOrchestrator, to, p)
	if err := o.outbox.Send(ctx, env); err != nil {
		return "", fmt.Errorf("dispatch %s turn to %s: %w", p.Purpose, to, err)
	}
	o.metrics.TurnDispatched(string(to), string(p.Purpose))
	debug(ctx, "dispatched %s to %s %s for %s/%s/%s", p.Purpose, to, p.Speaker, p.Topic, p.Subtopic, p.Section)
	return env.ID, nil
}

// await blocks until the awaited speaker answers the envelope sent. Any other traffic,
// including late answers to earlier turns, is dropped. A reply timeout yields a fallback
// reply so the turn can complete.
func (o *Orchestrator) await(ctx context.Context, sent string, role proto.Role, name string, purpose proto.Purpose) (*proto.ReplyPayload, error) {
	waitCtx, cancel := context.WithTimeout(ctx, o.replyTimeout)
	defer cancel()

	for {
		env, ok, err := o.inbox.Receive(waitCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.logger.Warn("no reply from %s %s within %s, substituting fallback", role, name, o.replyTimeout)
			return &proto.ReplyPayload{ReplyTo: sent, Purpose: purpose, Speaker: name, Role: role, Round: o.cur.round, Fallback: true}, nil
		}
		if !ok {
			return nil, ErrStopped
		}

		reply, match := o.matches(env, sent, role, name, purpose)
		if !match {
			debug(ctx, "dropped %s while awaiting %s %s", env.Describe(), role, name)
			o.metrics.EnvelopeDropped(ID, "unexpected")
			continue
		}
		return reply, nil
	}
}

func (o *Orchestrator) matches(env *proto.Envelope, sent string, role proto.Role, name string, purpose proto.Purpose) (*proto.ReplyPayload, bool) {
	if env.Receiver != proto.RoleOrchestrator || env.Sender != role {
		return nil, false
	}
	reply, ok := env.Payload.(*proto.ReplyPayload)
	if !ok {
		return nil, false
	}
	if reply.ReplyTo != sent {
		return nil, false
	}
	if reply.Role != role || reply.Speaker != name || reply.Purpose != purpose || reply.Round != o.cur.round {
		return nil, false
	}
	return reply, true
}

// record appends one turn per non-empty reply line and updates the section counters.
func (o *Orchestrator) record(ctx context.Context, reply *proto.ReplyPayload) {
	o.turns++
	o.cur.turns++
	if reply.Role == proto.RoleCandidate {
		o.cur.candidateReplies++
	}
	o.cur.lastSpeaker = reply.Speaker
	o.cur.lastRole = reply.Role
	if reply.Fallback {
		o.fallbacks++
	}

	now := o.now().UTC()
	recorded := 0
	for _, line := range reply.Lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		turn := memory.Turn{Speaker: reply.Speaker, Role: string(reply.Role), Content: line, At: now}
		if err := o.memory.AppendDialog(o.cur.round, o.cur.topic, o.cur.subtopic, turn); err != nil {
			o.logger.Warn("failed to record turn: %v", err)
			continue
		}
		recorded++
		o.observer.OnTurn(o.event(reply, turn))
	}
	if recorded == 0 {
		o.observer.OnTurn(o.event(reply, memory.Turn{Speaker: reply.Speaker, Role: string(reply.Role), At: now}))
	}
	debug(ctx, "recorded %d lines from %s %s", recorded, reply.Role, reply.Speaker)
}

func (o *Orchestrator) event(reply *proto.ReplyPayload, turn memory.Turn) TurnEvent {
	return TurnEvent{
		Round:    o.cur.round,
		Topic:    o.cur.topic,
		Subtopic: o.cur.subtopic,
		Section:  o.cur.section,
		Purpose:  reply.Purpose,
		Turn:     turn,
		Code:     reply.Code,
		Score:    reply.Score,
		Fallback: reply.Fallback,
	}
}

// activityUpdate hands the latest candidate code to the activity monitor. The
// acknowledgement is shown to observers but kept out of the dialog.
func (o *Orchestrator) activityUpdate(ctx context.Context, tn *progress.TopicNode, st *progress.SubtopicNode) error {
	if o.activity == nil {
		return nil
	}
	p := &proto.MasterPayload{
		Purpose:       proto.PurposeActivityUpdate,
		Round:         o.cur.round,
		Topic:         tn.Name(),
		Subtopic:      st.Name(),
		Section:       o.cur.section,
		CandidateCode: o.lastCode,
	}
	sent, err := o.send(ctx, proto.RoleActivityMonitor, p)
	if err != nil {
		return err
	}
	reply, err := o.await(ctx, sent, proto.RoleActivityMonitor, "", proto.PurposeActivityUpdate)
	if err != nil {
		return err
	}
	o.notify(reply)
	return nil
}

// notify reports a side-channel reply to observers line by line.
func (o *Orchestrator) notify(reply *proto.ReplyPayload) {
	now := o.now().UTC()
	speaker := reply.Speaker
	if speaker == "" {
		speaker = string(reply.Role)
	}
	if len(reply.Lines) == 0 {
		o.observer.OnTurn(o.event(reply, memory.Turn{Speaker: speaker, Role: string(reply.Role), At: now}))
		return
	}
	for _, line := range reply.Lines {
		o.observer.OnTurn(o.event(reply, memory.Turn{Speaker: speaker, Role: string(reply.Role), Content: line, At: now}))
	}
}
