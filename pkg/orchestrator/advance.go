package orchestrator

import (
	"context"
	"time"

	"interviewsim/pkg/logx"
	"interviewsim/pkg/policy"
	"interviewsim/pkg/progress"
	"interviewsim/pkg/proto"
)

func debug(ctx context.Context, format string, args ...any) {
	logx.Debug(ctx, "orchestrator", format, args...)
}

// advance asks the judge whether the section is done. The per-section turn cap closes
// the section regardless of the judge.
func (o *Orchestrator) advance(ctx context.Context, tn *progress.TopicNode, st *progress.SubtopicNode, remaining time.Duration) {
	jc := &policy.JudgeContext{
		Round:            string(o.cur.round),
		Topic:            o.cur.topic,
		Subtopic:         o.cur.subtopic,
		Section:          o.cur.section,
		Turns:            o.cur.turns,
		CandidateReplies: o.cur.candidateReplies,
		Remaining:        remaining,
		Dialog:           o.memory.DialogFor(o.cur.round, o.cur.topic, o.cur.subtopic),
	}

	done, err := o.judge.SectionDone(ctx, jc)
	if err != nil {
		o.logger.Warn("completion judge failed for %s: %v", o.cur.section, err)
		done = false
	}
	if !done && o.cur.turns >= o.maxTurns {
		o.logger.Info("section %s reached %d turns, closing it", o.cur.section, o.maxTurns)
		done = true
	}
	if !done {
		return
	}

	res, err := o.progress.MarkSectionDone(o.cur.round, o.cur.topic, o.cur.subtopic, o.cur.section)
	if err != nil {
		o.logger.Warn("failed to mark section done: %v", err)
		return
	}
	o.metrics.SectionCompleted(string(o.cur.round))
	o.logger.Info("section %s / %s / %s done", o.cur.topic, o.cur.subtopic, o.cur.section)

	o.afterMark(ctx, tn, st, res)
	o.publish()
}

// afterMark produces summaries for whatever just completed and requests an evaluation
// for a completed topic.
func (o *Orchestrator) afterMark(ctx context.Context, tn *progress.TopicNode, st *progress.SubtopicNode, res progress.MarkResult) {
	r := o.cur.round
	if res.SubtopicCompleted {
		lines, err := o.summarizer.Summarize(ctx, &policy.SummaryContext{
			Round:    string(r),
			Topic:    tn.Name(),
			Subtopic: st.Name(),
			Dialog:   o.memory.DialogFor(r, tn.Name(), st.Name()),
			Previous: o.memory.SubtopicSummary(r, tn.Name(), st.Name()),
		})
		switch {
		case err != nil:
			o.logger.Warn("subtopic summary for %s / %s failed: %v", tn.Name(), st.Name(), err)
		case len(lines) > 0:
			if err := o.memory.AppendSubtopicSummary(r, tn.Name(), st.Name(), lines); err != nil {
				o.logger.Warn("failed to store subtopic summary: %v", err)
			}
		}
		o.logger.Info("subtopic %s / %s complete", tn.Name(), st.Name())
	}

	if !res.TopicCompleted {
		return
	}

	var previous []string
	for _, sub := range tn.Spec().SubtopicNames() {
		previous = append(previous, o.memory.SubtopicSummary(r, tn.Name(), sub)...)
	}
	lines, err := o.summarizer.Summarize(ctx, &policy.SummaryContext{
		Round:    string(r),
		Topic:    tn.Name(),
		Dialog:   o.memory.AllDialogForTopic(r, tn.Name()),
		Previous: previous,
	})
	switch {
	case err != nil:
		o.logger.Warn("topic summary for %s failed: %v", tn.Name(), err)
	case len(lines) > 0:
		if err := o.memory.AppendTopicSummary(r, tn.Name(), lines); err != nil {
			o.logger.Warn("failed to store topic summary: %v", err)
		}
	}
	o.logger.Info("topic %s complete", tn.Name())

	if o.evaluator {
		if err := o.evaluate(ctx, tn); err != nil {
			o.logger.Warn("evaluation of %s skipped: %v", tn.Name(), err)
		}
	}
}

// evaluate sends an EVALUATE turn for a completed topic and keeps the verdict.
func (o *Orchestrator) evaluate(ctx context.Context, tn *progress.TopicNode) error {
	r := o.cur.round
	p := &proto.MasterPayload{
		Purpose:            proto.PurposeEvaluate,
		Round:              r,
		Topic:              tn.Name(),
		TopicDescription:   tn.Spec().Description,
		TopicDialog:        o.sess.Tokens.ClipTurns(o.memory.AllDialogForTopic(r, tn.Name()), o.contextTokens),
		TopicSummary:       o.memory.TopicSummary(r, tn.Name()),
		EvaluationCriteria: tn.Spec().EvaluationCriteria,
		CandidateCode:      o.lastCode,
	}
	if o.activity != nil {
		p.ActivityProgress = o.activity.Progress()
	}
	sent, err := o.send(ctx, proto.RoleEvaluator, p)
	if err != nil {
		return err
	}
	reply, err := o.await(ctx, sent, proto.RoleEvaluator, "", proto.PurposeEvaluate)
	if err != nil {
		return err
	}
	o.verdicts = append(o.verdicts, Verdict{
		Round:    r,
		Topic:    tn.Name(),
		Lines:    append([]string(nil), reply.Lines...),
		Score:    reply.Score,
		Fallback: reply.Fallback,
	})
	o.notify(reply)
	return nil
}
