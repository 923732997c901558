package llm

import (
	"context"
	"errors"
	"time"
)

// TimeoutMiddleware bounds each completion attempt. A timeout is reported as transient so
// the retry middleware above it may try again.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Client) Client {
		if timeout <= 0 {
			return next
		}
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				attemptCtx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				resp, err := next.Complete(attemptCtx, req)
				if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
					return resp, NewErrorWithCause(ErrorTypeTransient, err, "request timed out after "+timeout.String())
				}
				return resp, err
			},
			next.ModelName,
		)
	}
}
