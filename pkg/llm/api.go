// Package llm defines the completion client used by every generation-backed component and
// the middleware that wraps it.
package llm

import (
	"context"
)

// CompletionRole is the author of one message in a completion request.
type CompletionRole string

const (
	// RoleSystem carries instructions.
	RoleSystem CompletionRole = "system"
	// RoleUser carries the prompt.
	RoleUser CompletionRole = "user"
	// RoleAssistant carries earlier model output.
	RoleAssistant CompletionRole = "assistant"
)

// CompletionMessage is one message of a conversation sent to a model.
type CompletionMessage struct {
	Role    CompletionRole
	Content string
}

// CompletionRequest is a provider-neutral completion call.
type CompletionRequest struct {
	Messages    []CompletionMessage
	Temperature float32
	MaxTokens   int
}

// CompletionResponse is the provider-neutral result of a completion call.
type CompletionResponse struct {
	Content          string
	StopReason       string
	PromptTokens     int
	CompletionTokens int
}

// Client is implemented by every model backend and by middleware-wrapped clients.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	ModelName() string
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleAssistant, Content: content}
}
