package candidate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"interviewsim/pkg/generate"
	"interviewsim/pkg/memory"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/proto"
)

// Generator produces structured replies.
type Generator interface {
	Generate(ctx context.Context, req *generate.Request) (generate.Reply, error)
}

// GeneratedAnswers lets a model play the candidate.
type GeneratedAnswers struct {
	gen  Generator
	spec plan.Candidate
}

// NewGeneratedAnswers creates a model-backed answer source.
func NewGeneratedAnswers(gen Generator, spec plan.Candidate) *GeneratedAnswers {
	return &GeneratedAnswers{gen: gen, spec: spec}
}

// Answer implements AnswerSource.
func (g *GeneratedAnswers) Answer(ctx context.Context, msg *proto.MasterPayload, history []memory.Turn) (Answer, error) {
	instructions := fmt.Sprintf("You are %s, a candidate interviewing for %s. %s\n"+
		"Answer the panel naturally and concisely. When asked to write code, put it in \"code\".",
		g.spec.Name, g.spec.Role, g.spec.Profile)

	reply, err := g.gen.Generate(ctx, &generate.Request{
		Instructions: instructions,
		Payload:      msg,
		History:      history,
		Keys:         []string{"lines", "code"},
	})
	if err != nil {
		return Answer{}, err
	}
	return Answer{Lines: reply.Lines, Code: reply.Code}, nil
}

// ConsoleAnswers reads the candidate's answers from a human. An answer ends with an empty
// line; text between lines of ``` is submitted as code.
type ConsoleAnswers struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewConsoleAnswers reads from in and prompts on out. Prompts are shown only when in is a
// terminal.
func NewConsoleAnswers(in *os.File, out io.Writer) *ConsoleAnswers {
	return &ConsoleAnswers{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: term.IsTerminal(int(in.Fd())), //nolint:gosec // fd fits in int
	}
}

// NewScriptedConsole reads answers from any reader without prompting.
func NewScriptedConsole(in io.Reader, out io.Writer) *ConsoleAnswers {
	return &ConsoleAnswers{in: bufio.NewReader(in), out: out}
}

// Answer implements AnswerSource.
func (c *ConsoleAnswers) Answer(ctx context.Context, msg *proto.MasterPayload, _ []memory.Turn) (Answer, error) {
	if c.interactive {
		fmt.Fprintf(c.out, "\n[%s / %s / %s] your answer (blank line to finish):\n", msg.Topic, msg.Subtopic, msg.Section)
	}

	type result struct {
		ans Answer
		err error
	}
	done := make(chan result, 1)
	go func() {
		ans, err := c.read()
		done <- result{ans, err}
	}()

	select {
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	case r := <-done:
		return r.ans, r.err
	}
}

func (c *ConsoleAnswers) read() (Answer, error) {
	var ans Answer
	var code []string
	inCode := false
	for {
		line, err := c.in.ReadString('\n')
		text := strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(strings.TrimSpace(text), "```"):
			inCode = !inCode
		case inCode:
			code = append(code, text)
		case strings.TrimSpace(text) == "" && err == nil:
			if len(ans.Lines) > 0 || len(code) > 0 {
				ans.Code = strings.Join(code, "\n")
				return ans, nil
			}
		case strings.TrimSpace(text) != "":
			ans.Lines = append(ans.Lines, strings.TrimSpace(text))
		}
		if err != nil {
			ans.Code = strings.Join(code, "\n")
			if errors.Is(err, io.EOF) && (len(ans.Lines) > 0 || len(code) > 0) {
				return ans, nil
			}
			return ans, err
		}
	}
}
