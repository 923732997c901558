package llm

import (
	"context"
	"strings"
	"time"

	"interviewsim/pkg/metrics"
)

// MetricsMiddleware reports every completion to the recorder.
func MetricsMiddleware(rec metrics.Recorder) Middleware {
	if rec == nil {
		rec = metrics.Nop()
	}
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				rec.ObserveGeneration(next.ModelName(), resp.PromptTokens, resp.CompletionTokens, err == nil, time.Since(start))
				return resp, err
			},
			next.ModelName,
		)
	}
}

// EmptyResponseMiddleware turns blank content into a retryable ErrorTypeEmptyResponse.
func EmptyResponseMiddleware() Middleware {
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				resp, err := next.Complete(ctx, req)
				if err == nil && strings.TrimSpace(resp.Content) == "" {
					return resp, NewError(ErrorTypeEmptyResponse, "model returned no content")
				}
				return resp, err
			},
			next.ModelName,
		)
	}
}
