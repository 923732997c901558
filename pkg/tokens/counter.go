// Package tokens counts tokens and clips conversation history to a context budget.
package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"interviewsim/pkg/memory"
)

// Counter counts tokens with a tiktoken codec. Models without their own encoding are
// approximated with the GPT-4 encoding.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter creates a counter using the GPT-4 encoding.
func NewCounter() (*Counter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &Counter{codec: codec}, nil
}

// Estimate returns a counter that always uses the 4-characters-per-token estimate.
func Estimate() *Counter {
	return &Counter{}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if c == nil || c.codec == nil {
		return estimate(text)
	}
	n, err := c.codec.Count(text)
	if err != nil {
		return estimate(text)
	}
	return n
}

func estimate(text string) int {
	return (len(text) + 3) / 4
}

// turnOverhead approximates the speaker label and separators rendered around a turn.
const turnOverhead = 4

// CountTurn returns the tokens a turn costs in a prompt.
func (c *Counter) CountTurn(t memory.Turn) int {
	return c.Count(t.Speaker) + c.Count(t.Content) + turnOverhead
}

// ClipTurns keeps the most recent turns whose total cost fits budget, preserving order.
// A budget of zero or less keeps everything. The result never aliases the input.
func (c *Counter) ClipTurns(turns []memory.Turn, budget int) []memory.Turn {
	start := len(turns)
	if budget <= 0 {
		start = 0
	} else {
		used := 0
		for start > 0 {
			cost := c.CountTurn(turns[start-1])
			if used+cost > budget {
				break
			}
			used += cost
			start--
		}
	}
	out := make([]memory.Turn, len(turns)-start)
	copy(out, turns[start:])
	return out
}

// ClipStrings keeps the most recent strings whose total cost fits budget, preserving order.
func (c *Counter) ClipStrings(items []string, budget int) []string {
	start := len(items)
	if budget <= 0 {
		start = 0
	} else {
		used := 0
		for start > 0 {
			cost := c.Count(items[start-1])
			if used+cost > budget {
				break
			}
			used += cost
			start--
		}
	}
	out := make([]string, len(items)-start)
	copy(out, items[start:])
	return out
}
