// Package llmimpl builds the configured completion client and wraps it in the standard
// middleware chain.
package llmimpl

import (
	"fmt"

	"interviewsim/internal/llmimpl/anthropic"
	"interviewsim/internal/llmimpl/google"
	"interviewsim/internal/llmimpl/ollama"
	"interviewsim/internal/llmimpl/openai"
	"interviewsim/pkg/config"
	"interviewsim/pkg/limiter"
	"interviewsim/pkg/llm"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/metrics"
	"interviewsim/pkg/tokens"
)

// New creates the client for cfg. The chain, outermost first, is metrics, retry, the local
// rate limiter when configured, timeout, empty-response detection, then the provider.
func New(cfg *config.LLMConfig, rec metrics.Recorder) (llm.Client, error) {
	raw, err := newRaw(cfg)
	if err != nil {
		return nil, err
	}

	retry := llm.DefaultRetryConfig
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}

	middlewares := []llm.Middleware{
		llm.MetricsMiddleware(rec),
		llm.RetryMiddleware(retry),
	}
	if cfg.TokensPerMinute > 0 || cfg.MaxConcurrent > 0 {
		counter, err := tokens.NewCounter()
		if err != nil {
			logx.NewLogger("llm").Warn("token counter unavailable, estimating: %v", err)
		}
		lim := limiter.New(limiter.Limits{TokensPerMinute: cfg.TokensPerMinute, MaxConcurrent: cfg.MaxConcurrent})
		middlewares = append(middlewares, llm.RateLimitMiddleware(lim, counter))
	}
	middlewares = append(middlewares,
		llm.TimeoutMiddleware(cfg.Timeout),
		llm.EmptyResponseMiddleware(),
	)

	logx.NewLogger("llm").Info("using %s model %q", providerLabel(cfg), raw.ModelName())
	return llm.Chain(raw, middlewares...), nil
}

func newRaw(cfg *config.LLMConfig) (llm.Client, error) {
	provider, err := cfg.EffectiveProvider()
	if err != nil {
		return nil, err
	}

	switch provider {
	case config.ProviderScripted:
		return llm.NewScriptedClient(nil), nil
	case config.ProviderOllama:
		return ollama.NewClient(cfg.OllamaHost(), cfg.Model, nil), nil
	}

	key, err := cfg.APIKey()
	if err != nil {
		return nil, fmt.Errorf("%s provider: %w", provider, err)
	}
	switch provider {
	case config.ProviderAnthropic:
		return anthropic.NewClient(key, cfg.Model), nil
	case config.ProviderOpenAI:
		return openai.NewClient(key, cfg.Model), nil
	case config.ProviderGoogle:
		return google.NewClient(key, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func providerLabel(cfg *config.LLMConfig) string {
	if p, err := cfg.EffectiveProvider(); err == nil {
		return p
	}
	return "unknown"
}
