package metrics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// SessionMetrics aggregates the counters of one session as scraped by Prometheus.
type SessionMetrics struct {
	SessionID         string  `json:"session_id"`
	TurnsDispatched   int64   `json:"turns_dispatched"`
	FallbackReplies   int64   `json:"fallback_replies"`
	SectionsCompleted int64   `json:"sections_completed"`
	PromptTokens      int64   `json:"prompt_tokens"`
	CompletionTokens  int64   `json:"completion_tokens"`
	TotalTokens       int64   `json:"total_tokens"`
	MeanReplySeconds  float64 `json:"mean_reply_seconds"`
}

// QueryService reads session metrics back from a Prometheus server.
type QueryService struct {
	queryAPI v1.API
}

// NewQueryService creates a query service for the Prometheus server at prometheusURL.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetSessionMetrics aggregates the stored counters for sessionID.
func (q *QueryService) GetSessionMetrics(ctx context.Context, sessionID string) (*SessionMetrics, error) {
	m := &SessionMetrics{SessionID: sessionID}

	queries := []struct {
		expr string
		dst  *int64
	}{
		{fmt.Sprintf(`sum(interviewsim_turns_dispatched_total{session=%q})`, sessionID), &m.TurnsDispatched},
		{fmt.Sprintf(`sum(interviewsim_fallback_replies_total{session=%q})`, sessionID), &m.FallbackReplies},
		{fmt.Sprintf(`sum(interviewsim_sections_completed_total{session=%q})`, sessionID), &m.SectionsCompleted},
		{fmt.Sprintf(`sum(interviewsim_llm_tokens_total{session=%q, type="prompt"})`, sessionID), &m.PromptTokens},
		{fmt.Sprintf(`sum(interviewsim_llm_tokens_total{session=%q, type="completion"})`, sessionID), &m.CompletionTokens},
	}
	for _, qq := range queries {
		v, err := q.scalar(ctx, qq.expr)
		if err != nil {
			return nil, err
		}
		*qq.dst = int64(v)
	}
	m.TotalTokens = m.PromptTokens + m.CompletionTokens

	mean, err := q.scalar(ctx, fmt.Sprintf(
		`sum(interviewsim_reply_latency_seconds_sum{session=%q}) / sum(interviewsim_reply_latency_seconds_count{session=%q})`,
		sessionID, sessionID))
	if err != nil {
		return nil, err
	}
	m.MeanReplySeconds = mean

	return m, nil
}

func (q *QueryService) scalar(ctx context.Context, expr string) (float64, error) {
	result, _, err := q.queryAPI.Query(ctx, expr, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", expr, err)
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		v := float64(vector[0].Value)
		if math.IsNaN(v) {
			return 0, nil
		}
		return v, nil
	}
	return 0, nil
}
