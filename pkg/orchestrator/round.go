package orchestrator

import (
	"context"
	"time"

	"interviewsim/pkg/plan"
	"interviewsim/pkg/policy"
	"interviewsim/pkg/progress"
	"interviewsim/pkg/proto"
)

// runRound loops SELECT_TOPIC ... ADVANCE until the round is exhausted.
func (o *Orchestrator) runRound(ctx context.Context, round plan.Round) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		o.transition(ctx, StateSelectTopic)
		tn, ok := o.progress.NextTopic(round)
		if !ok {
			o.transition(ctx, StateRoundDone)
			return nil
		}

		o.transition(ctx, StateSelectSubtopic)
		st, ok := o.progress.NextSubtopic(tn)
		if !ok {
			// Only reachable for a topic the graph already considers complete.
			continue
		}
		o.enterSubtopic(tn.Name(), st.Name())

		o.transition(ctx, StateSelectSection)
		remaining, expired := o.remaining(st.Spec())
		if expired {
			o.expireSubtopic(ctx, tn, st)
			continue
		}
		section, ok := o.progress.NextSection(st)
		if !ok {
			continue
		}
		o.enterSection(section)

		if err := o.turn(ctx, tn, st, remaining); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) enterSubtopic(topic, subtopic string) {
	if o.cur.topic == topic && o.cur.subtopic == subtopic {
		return
	}
	o.cur.topic = topic
	o.cur.subtopic = subtopic
	o.cur.section = ""
	o.cur.subtopicStart = o.now()
	o.logger.Info("now discussing %s / %s", topic, subtopic)
}

func (o *Orchestrator) enterSection(section string) {
	if o.cur.section == section {
		return
	}
	o.cur.section = section
	o.cur.turns = 0
	o.cur.candidateReplies = 0
}

// remaining is the subtopic budget minus time spent on it. Unbounded subtopics report
// zero remaining and never expire.
func (o *Orchestrator) remaining(spec plan.SubtopicSpec) (time.Duration, bool) {
	budget := spec.TimeBudget()
	if budget <= 0 {
		return 0, false
	}
	left := budget - o.now().Sub(o.cur.subtopicStart)
	return left, left <= 0
}

// expireSubtopic marks every remaining section of a subtopic done once its budget is spent.
func (o *Orchestrator) expireSubtopic(ctx context.Context, tn *progress.TopicNode, st *progress.SubtopicNode) {
	o.logger.Info("time budget of %s / %s spent, closing remaining sections", tn.Name(), st.Name())
	res, err := o.progress.CompleteSubtopic(o.cur.round, tn.Name(), st.Name())
	if err != nil {
		o.logger.Warn("failed to close %s / %s: %v", tn.Name(), st.Name(), err)
		return
	}
	o.afterMark(ctx, tn, st, res)
	o.publish()
}

// turn runs SELECT_SPEAKER through ADVANCE for one dispatched turn.
func (o *Orchestrator) turn(ctx context.Context, tn *progress.TopicNode, st *progress.SubtopicNode, remaining time.Duration) error {
	o.transition(ctx, StateSelectSpeaker)
	decision := o.selectSpeaker(ctx)

	o.transition(ctx, StateDispatch)
	payload := o.buildPayload(tn, st, decision, remaining)
	sentAt := o.now()
	sent, err := o.send(ctx, decision.Role, payload)
	if err != nil {
		return err
	}

	o.transition(ctx, StateAwaitReply)
	reply, err := o.await(ctx, sent, decision.Role, decision.Name, proto.PurposeTurn)
	if err != nil {
		return err
	}
	o.metrics.ObserveReply(string(decision.Role), reply.Fallback, o.now().Sub(sentAt))

	o.transition(ctx, StateRecord)
	o.record(ctx, reply)
	if reply.Code != "" && decision.Role == proto.RoleCandidate {
		o.lastCode = reply.Code
		if err := o.activityUpdate(ctx, tn, st); err != nil {
			return err
		}
	}

	o.transition(ctx, StateAdvance)
	o.advance(ctx, tn, st, remaining)
	return nil
}

// selectSpeaker asks the speaker policy and falls back to round-robin on error or an
// answer naming nobody in the room.
func (o *Orchestrator) selectSpeaker(ctx context.Context) policy.Decision {
	sc := &policy.SpeakerContext{
		Round:         string(o.cur.round),
		Topic:         o.cur.topic,
		Subtopic:      o.cur.subtopic,
		Section:       o.cur.section,
		Panelists:     o.panelistNames(),
		Candidate:     o.sess.CandidateName(),
		LastSpeaker:   o.cur.lastSpeaker,
		LastRole:      o.cur.lastRole,
		TurnInSection: o.cur.turns,
		Dialog:        o.memory.DialogFor(o.cur.round, o.cur.topic, o.cur.subtopic),
	}

	d, err := o.speaker.Next(ctx, sc)
	if err == nil && o.validSpeaker(d, sc) {
		return d
	}
	if err != nil {
		o.logger.Warn("speaker policy failed, using round-robin: %v", err)
	} else {
		o.logger.Warn("speaker policy chose unknown speaker %s/%s, using round-robin", d.Role, d.Name)
	}
	d, _ = o.fallback.Next(ctx, sc)
	return d
}

func (o *Orchestrator) validSpeaker(d policy.Decision, sc *policy.SpeakerContext) bool {
	switch d.Role {
	case proto.RoleCandidate:
		return d.Name == sc.Candidate
	case proto.RolePanelist:
		for _, n := range sc.Panelists {
			if n == d.Name {
				return true
			}
		}
	}
	return false
}

func (o *Orchestrator) panelistNames() []string {
	panelists := o.sess.Plan.PanelistsFor(o.cur.round)
	names := make([]string, 0, len(panelists))
	for _, p := range panelists {
		names = append(names, p.Name)
	}
	return names
}
