package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewsim/pkg/llm"
)

func TestRenderInput(t *testing.T) {
	instructions, input := renderInput([]llm.CompletionMessage{
		llm.NewSystemMessage("rules"),
		llm.NewUserMessage("question"),
		llm.NewAssistantMessage("answer"),
		llm.NewUserMessage("follow-up"),
	})
	assert.Equal(t, "rules", instructions)
	assert.Equal(t, "question\n\nAssistant: answer\n\nfollow-up", input)
}

func TestCompleteRejectsEmptyInput(t *testing.T) {
	client := NewClient("key", "")
	assert.Equal(t, DefaultModel, client.ModelName())

	_, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.CompletionMessage{llm.NewSystemMessage("rules only")},
	})
	require.Error(t, err)
	assert.True(t, llm.Is(err, llm.ErrorTypeBadPrompt))
}
