package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// ScriptedModel is the model name reported by the offline client.
const ScriptedModel = "scripted"

// Responder produces the content for a request when no queued response is left.
type Responder func(req CompletionRequest) string

// ScriptedClient is an offline deterministic client. Queued responses are returned first, in
// order; after that the responder answers. It never fails unless an error is queued.
type ScriptedClient struct {
	mu        sync.Mutex
	queue     []scripted
	responder Responder
	requests  []CompletionRequest
}

type scripted struct {
	content string
	err     error
}

// NewScriptedClient creates a scripted client. A nil responder uses EchoResponder.
func NewScriptedClient(responder Responder) *ScriptedClient {
	if responder == nil {
		responder = EchoResponder
	}
	return &ScriptedClient{responder: responder}
}

// Enqueue adds canned responses.
func (s *ScriptedClient) Enqueue(contents ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range contents {
		s.queue = append(s.queue, scripted{content: c})
	}
}

// EnqueueError makes the next call fail with err.
func (s *ScriptedClient) EnqueueError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scripted{err: err})
}

// Requests returns every request seen so far.
func (s *ScriptedClient) Requests() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CompletionRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Complete implements Client.
func (s *ScriptedClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	var next *scripted
	if len(s.queue) > 0 {
		next = &s.queue[0]
		s.queue = s.queue[1:]
	}
	s.mu.Unlock()

	var content string
	switch {
	case next != nil && next.err != nil:
		return CompletionResponse{}, next.err
	case next != nil:
		content = next.content
	default:
		content = s.responder(req)
	}

	return CompletionResponse{
		Content:          content,
		StopReason:       "end_turn",
		PromptTokens:     wordCount(req),
		CompletionTokens: len(strings.Fields(content)),
	}, nil
}

// ModelName implements Client.
func (s *ScriptedClient) ModelName() string {
	return ScriptedModel
}

// EchoResponder answers with a JSON reply that quotes the final line of the last user message.
func EchoResponder(req CompletionRequest) string {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	lines := strings.Split(strings.TrimSpace(last), "\n")
	focus := strings.TrimSpace(lines[len(lines)-1])
	if focus == "" {
		focus = "the current question"
	}

	score := 3.0
	out, _ := json.Marshal(map[string]any{
		"lines":   []string{"Regarding " + focus + ", here is my response."},
		"summary": "Discussed " + focus + ".",
		"score":   score,
		"done":    false,
	})
	return string(out)
}

func wordCount(req CompletionRequest) int {
	n := 0
	for i := range req.Messages {
		n += len(strings.Fields(req.Messages[i].Content))
	}
	return n
}
