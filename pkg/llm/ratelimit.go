package llm

import (
	"context"
	"errors"

	"interviewsim/pkg/limiter"
	"interviewsim/pkg/tokens"
)

// RateLimitMiddleware holds a concurrency slot for the duration of each call and reserves
// the prompt tokens plus the completion allowance. An empty bucket surfaces as a rate-limit
// error so the retry middleware above backs off. A nil counter falls back to estimates.
func RateLimitMiddleware(lim *limiter.Limiter, counter *tokens.Counter) Middleware {
	return func(next Client) Client {
		if lim == nil {
			return next
		}
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				release, err := lim.Acquire(ctx)
				if err != nil {
					return CompletionResponse{}, err
				}
				defer release()

				if err := lim.Reserve(requestTokens(counter, req)); err != nil {
					if errors.Is(err, limiter.ErrRateLimit) {
						return CompletionResponse{}, NewErrorWithCause(ErrorTypeRateLimit, err, "local token budget exhausted")
					}
					return CompletionResponse{}, err
				}
				return next.Complete(ctx, req)
			},
			next.ModelName,
		)
	}
}

func requestTokens(counter *tokens.Counter, req CompletionRequest) int {
	n := req.MaxTokens
	for _, m := range req.Messages {
		n += counter.Count(m.Content)
	}
	return n
}
