// Package generate turns a turn context into a structured reply using a completion model.
// Model output is expected to be one JSON object; it is decoded loosely so that numbers
// sent as strings or a single line sent as a string still land in the typed reply.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"interviewsim/pkg/llm"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/memory"
	"interviewsim/pkg/proto"
	"interviewsim/pkg/tokens"
)

// Errors returned alongside DefaultReply.
var (
	ErrNoJSON     = errors.New("model output contains no JSON object")
	ErrEmptyReply = errors.New("model reply has no lines")
)

// Reply is the structured result of a generation call. Which fields are meaningful depends
// on the caller's request.
type Reply struct {
	Lines           []string `mapstructure:"lines"`
	Code            string   `mapstructure:"code"`
	Score           *float64 `mapstructure:"score"`
	Summary         []string `mapstructure:"summary"`
	Verdict         []string `mapstructure:"verdict"`
	Next            string   `mapstructure:"next"`
	AddressPrevious bool     `mapstructure:"address_previous"`
	Done            bool     `mapstructure:"done"`
}

// DefaultReply is the empty reply substituted when generation fails.
func DefaultReply() Reply {
	return Reply{}
}

// Request is one generation call.
type Request struct {
	// Instructions become the system prompt: persona plus task.
	Instructions string
	// Payload is the turn context copied from the orchestrator, may be nil.
	Payload *proto.MasterPayload
	// History is the caller's private conversation history.
	History []memory.Turn
	// HistoryTitle heads the rendered history. Defaults to "Your earlier turns".
	HistoryTitle string
	// Notes are extra context lines rendered after the payload.
	Notes []string
	// Keys lists the JSON keys the reply should contain.
	Keys []string
	// RequireLines makes a reply without lines an error.
	RequireLines bool
}

// Config tunes a Generator.
type Config struct {
	MaxTokens     int
	Temperature   float32
	HistoryTokens int
}

// Generator renders requests into prompts and decodes the model's answer.
type Generator struct {
	client  llm.Client
	counter *tokens.Counter
	cfg     Config
	logger  *logx.Logger
}

// New creates a generator. A nil counter falls back to token estimation.
func New(client llm.Client, counter *tokens.Counter, cfg Config) *Generator {
	if counter == nil {
		counter = tokens.Estimate()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Generator{client: client, counter: counter, cfg: cfg, logger: logx.NewLogger("generate")}
}

// Generate asks the model for a reply. On any failure it returns DefaultReply and the error;
// callers log and continue.
func (g *Generator) Generate(ctx context.Context, req *Request) (Reply, error) {
	start := time.Now()
	resp, err := g.client.Complete(ctx, llm.CompletionRequest{
		Messages:    g.Messages(req),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return DefaultReply(), fmt.Errorf("generation failed: %w", err)
	}

	reply, err := Decode(resp.Content)
	if err != nil {
		g.logger.Warn("undecodable reply from %s: %v", g.client.ModelName(), err)
		return DefaultReply(), err
	}
	if req.RequireLines && len(reply.Lines) == 0 {
		return DefaultReply(), ErrEmptyReply
	}

	logx.Debug(ctx, "generate", "%s answered in %s (%d prompt, %d completion tokens)",
		g.client.ModelName(), time.Since(start), resp.PromptTokens, resp.CompletionTokens)
	return reply, nil
}

// Messages renders req into the completion conversation.
func (g *Generator) Messages(req *Request) []llm.CompletionMessage {
	keys := req.Keys
	if len(keys) == 0 {
		keys = []string{"lines"}
	}

	var system strings.Builder
	system.WriteString(strings.TrimSpace(req.Instructions))
	fmt.Fprintf(&system, "\n\nRespond with a single JSON object with the keys: %s.", strings.Join(keys, ", "))
	system.WriteString(" \"lines\" is a list of short spoken lines. Do not add any text outside the JSON object.")

	var user strings.Builder
	if history := g.counter.ClipTurns(req.History, g.cfg.HistoryTokens); len(history) > 0 {
		title := req.HistoryTitle
		if title == "" {
			title = "Your earlier turns"
		}
		fmt.Fprintf(&user, "%s:\n", title)
		writeTurns(&user, history)
		user.WriteString("\n")
	}
	if req.Payload != nil {
		writePayload(&user, req.Payload)
	}
	for _, note := range req.Notes {
		user.WriteString(note)
		user.WriteString("\n")
	}
	if req.Payload != nil && req.Payload.Section != "" {
		fmt.Fprintf(&user, "Section: %s", req.Payload.Section)
	}

	return []llm.CompletionMessage{
		llm.NewSystemMessage(system.String()),
		llm.NewUserMessage(strings.TrimSpace(user.String())),
	}
}

func writePayload(b *strings.Builder, p *proto.MasterPayload) {
	fmt.Fprintf(b, "Round: %s\n", p.Round)
	fmt.Fprintf(b, "Topic: %s", p.Topic)
	if p.TopicDescription != "" {
		fmt.Fprintf(b, " (%s)", p.TopicDescription)
	}
	b.WriteString("\n")
	if p.Subtopic != "" {
		fmt.Fprintf(b, "Subtopic: %s", p.Subtopic)
		if p.SubtopicDescription != "" {
			fmt.Fprintf(b, " (%s)", p.SubtopicDescription)
		}
		b.WriteString("\n")
	}
	if p.RemainingTime > 0 {
		fmt.Fprintf(b, "Time left in subtopic: %s\n", p.RemainingTime.Round(time.Second))
	}
	if p.LastCompleted != "" {
		fmt.Fprintf(b, "Just finished: %s\n", p.LastCompleted)
	}
	if p.AddressPrevious && p.PreviousSpeaker != "" {
		fmt.Fprintf(b, "Respond directly to %s.\n", p.PreviousSpeaker)
	}
	writeList(b, "Summaries of completed topics", p.CompletedSummaries)
	writeList(b, "Topic summary so far", p.TopicSummary)
	writeList(b, "Evaluation criteria", p.EvaluationCriteria)
	writeList(b, "Activity progress", p.ActivityProgress)
	if p.CandidateCode != "" {
		fmt.Fprintf(b, "Candidate code:\n```\n%s\n```\n", p.CandidateCode)
	}
	if len(p.TopicDialog) > 0 {
		b.WriteString("Conversation in this topic:\n")
		writeTurns(b, p.TopicDialog)
	}
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func writeTurns(b *strings.Builder, turns []memory.Turn) {
	for _, t := range turns {
		fmt.Fprintf(b, "%s: %s\n", t.Speaker, t.Content)
	}
}

// Decode extracts the first JSON object from content and decodes it weakly into a Reply.
func Decode(content string) (Reply, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return DefaultReply(), ErrNoJSON
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return DefaultReply(), fmt.Errorf("%w: %v", ErrNoJSON, err)
	}

	var reply Reply
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &reply,
	})
	if err != nil {
		return DefaultReply(), fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return DefaultReply(), fmt.Errorf("failed to decode model reply: %w", err)
	}

	reply.Lines = compact(reply.Lines)
	reply.Summary = compact(reply.Summary)
	reply.Verdict = compact(reply.Verdict)
	return reply, nil
}

func compact(lines []string) []string {
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
