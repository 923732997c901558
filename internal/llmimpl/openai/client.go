// Package openai implements llm.Client on the OpenAI Responses API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"interviewsim/pkg/llm"
)

// DefaultModel is used when the configuration names none.
const DefaultModel = "gpt-5-mini"

// Client wraps the official OpenAI client.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a raw client. Middleware is applied by the caller.
func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{client: openai.NewClient(opts...), model: model}
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	instructions, input := renderInput(in.Messages)
	if input == "" {
		return llm.CompletionResponse{}, llm.NewError(llm.ErrorTypeBadPrompt, "no user input in request")
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}
	if instructions != "" {
		params.Instructions = openai.String(instructions)
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llm.NewError(llm.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	return llm.CompletionResponse{
		Content:          resp.OutputText(),
		StopReason:       string(resp.Status),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// ModelName implements llm.Client.
func (c *Client) ModelName() string {
	return c.model
}

func classifyError(err error) *llm.Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if classified := llm.ClassifyStatus(apiErr.StatusCode, err); classified != nil {
			return classified
		}
	}
	return llm.Classify(err)
}

// renderInput flattens the conversation into instructions plus a single input string.
func renderInput(messages []llm.CompletionMessage) (string, string) {
	var instructions []string
	var input strings.Builder
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			instructions = append(instructions, msg.Content)
		case llm.RoleAssistant:
			fmt.Fprintf(&input, "Assistant: %s\n\n", msg.Content)
		default:
			input.WriteString(msg.Content)
			input.WriteString("\n\n")
		}
	}
	return strings.Join(instructions, "\n\n"), strings.TrimSpace(input.String())
}
