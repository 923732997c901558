package transcript

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"interviewsim/pkg/memory"
	"interviewsim/pkg/orchestrator"
	"interviewsim/pkg/proto"
)

func event(role proto.Role, speaker, content string) orchestrator.TurnEvent {
	return orchestrator.TurnEvent{
		Round:    "technical",
		Topic:    "Go",
		Subtopic: "Concurrency",
		Section:  "intro",
		Turn:     memory.Turn{Speaker: speaker, Role: string(role), Content: content},
	}
}

func TestPrinterHeadersOnce(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.OnTurn(event(proto.RolePanelist, "Alice", "Tell me about channels."))
	p.OnTurn(event(proto.RoleCandidate, "Sam", "They pass values between goroutines."))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "TECHNICAL ROUND"))
	assert.Equal(t, 1, strings.Count(out, "Go / Concurrency / intro"))
	assert.Contains(t, out, "Alice: Tell me about channels.")
	assert.Contains(t, out, "Sam: They pass values between goroutines.")

	next := event(proto.RolePanelist, "Alice", "Next.")
	next.Section = "deep-dive"
	p.OnTurn(next)
	assert.Contains(t, buf.String(), "Go / Concurrency / deep-dive")
	assert.Equal(t, 1, strings.Count(buf.String(), "TECHNICAL ROUND"))
}

func TestPrinterFallbackCodeAndScore(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	silent := event(proto.RolePanelist, "Bob", "")
	silent.Fallback = true
	p.OnTurn(silent)
	assert.Contains(t, buf.String(), "Bob: (no reply)")

	code := event(proto.RoleCandidate, "Sam", "Here is my attempt.")
	code.Code = "func f() {}\nfunc g() {}\n"
	p.OnTurn(code)
	code.Turn.Content = "It compiles."
	p.OnTurn(code)
	assert.Equal(t, 1, strings.Count(buf.String(), "│ func f() {}"))
	assert.Contains(t, buf.String(), "│ func g() {}")

	score := 4.0
	verdict := event(proto.RoleEvaluator, "EVALUATOR", "Solid answers.")
	verdict.Score = &score
	p.OnTurn(verdict)
	verdict.Turn.Content = "Could go deeper."
	p.OnTurn(verdict)
	assert.Equal(t, 1, strings.Count(buf.String(), "score 4.0 / 5"))
}
