package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewsim/pkg/llm"
)

func TestCompleteAgainstStubServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama-test", body["model"])
		assert.Equal(t, false, body["stream"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama-test","message":{"role":"assistant","content":"hi back"},` +
			`"done":true,"done_reason":"stop","prompt_eval_count":5,"eval_count":3}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "llama-test", srv.Client())
	resp, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages:  []llm.CompletionMessage{llm.NewSystemMessage("s"), llm.NewUserMessage("hi")},
		MaxTokens: 16,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi back", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 5, resp.PromptTokens)
	assert.Equal(t, 3, resp.CompletionTokens)
}

func TestCompleteEmptyMessages(t *testing.T) {
	client := NewClient("", "m", nil)
	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	assert.True(t, llm.Is(err, llm.ErrorTypeBadPrompt))
}

func TestStopReason(t *testing.T) {
	assert.Equal(t, "max_tokens", stopReason(&api.ChatResponse{Done: true, DoneReason: "length"}))
	assert.Equal(t, "incomplete", stopReason(&api.ChatResponse{}))
}
