package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionLabel is the constant label carried by every series.
const SessionLabel = "session"

// PrometheusRecorder implements Recorder on a caller-supplied registry.
type PrometheusRecorder struct {
	envelopesRouted   *prometheus.CounterVec
	envelopesDropped  *prometheus.CounterVec
	turnsDispatched   *prometheus.CounterVec
	replyLatency      *prometheus.HistogramVec
	fallbackReplies   *prometheus.CounterVec
	sectionsCompleted *prometheus.CounterVec
	roundsCompleted   *prometheus.CounterVec
	tokensTotal       *prometheus.CounterVec
	generations       *prometheus.CounterVec
	generationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the session metrics on reg, labelled with sessionID.
func NewPrometheusRecorder(reg prometheus.Registerer, sessionID string) *PrometheusRecorder {
	factory := promauto.With(reg)
	constLabels := prometheus.Labels{SessionLabel: sessionID}

	return &PrometheusRecorder{
		envelopesRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interviewsim_envelopes_routed_total",
				Help:        "Envelopes forwarded by the dispatcher by payload kind and sender role",
				ConstLabels: constLabels,
			},
			[]string{"kind", "sender"},
		),
		envelopesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interviewsim_envelopes_dropped_total",
				Help:        "Envelopes rejected by an actor's acceptance rule",
				ConstLabels: constLabels,
			},
			[]string{"actor", "reason"},
		),
		turnsDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interviewsim_turns_dispatched_total",
				Help:        "Turns dispatched by the orchestrator",
				ConstLabels: constLabels,
			},
			[]string{"role", "purpose"},
		),
		replyLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "interviewsim_reply_latency_seconds",
				Help:        "Time between dispatching a turn and receiving its reply",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"role"},
		),
		fallbackReplies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interviewsim_fallback_replies_total",
				Help:        "Replies substituted with the default reply after a failure",
				ConstLabels: constLabels,
			},
			[]string{"role"},
		),
		sectionsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interviewsim_sections_completed_total",
				Help:        "Sections marked done",
				ConstLabels: constLabels,
			},
			[]string{"round"},
		),
		roundsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interviewsim_rounds_completed_total",
				Help:        "Rounds exhausted",
				ConstLabels: constLabels,
			},
			[]string{"round"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interviewsim_llm_tokens_total",
				Help:        "Tokens used by generation calls",
				ConstLabels: constLabels,
			},
			[]string{"model", "type"},
		),
		generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "interviewsim_llm_requests_total",
				Help:        "Generation calls by model and status",
				ConstLabels: constLabels,
			},
			[]string{"model", "status"},
		),
		generationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "interviewsim_llm_request_duration_seconds",
				Help:        "Duration of generation calls",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"model"},
		),
	}
}

// EnvelopeRouted implements Recorder.
func (p *PrometheusRecorder) EnvelopeRouted(kind, sender string) {
	p.envelopesRouted.WithLabelValues(kind, sender).Inc()
}

// EnvelopeDropped implements Recorder.
func (p *PrometheusRecorder) EnvelopeDropped(actor, reason string) {
	p.envelopesDropped.WithLabelValues(actor, reason).Inc()
}

// TurnDispatched implements Recorder.
func (p *PrometheusRecorder) TurnDispatched(role, purpose string) {
	p.turnsDispatched.WithLabelValues(role, purpose).Inc()
}

// ObserveReply implements Recorder.
func (p *PrometheusRecorder) ObserveReply(role string, fallback bool, latency time.Duration) {
	p.replyLatency.WithLabelValues(role).Observe(latency.Seconds())
	if fallback {
		p.fallbackReplies.WithLabelValues(role).Inc()
	}
}

// SectionCompleted implements Recorder.
func (p *PrometheusRecorder) SectionCompleted(round string) {
	p.sectionsCompleted.WithLabelValues(round).Inc()
}

// RoundCompleted implements Recorder.
func (p *PrometheusRecorder) RoundCompleted(round string) {
	p.roundsCompleted.WithLabelValues(round).Inc()
}

// ObserveGeneration implements Recorder.
func (p *PrometheusRecorder) ObserveGeneration(model string, promptTokens, completionTokens int, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.generations.WithLabelValues(model, status).Inc()
	if success {
		p.tokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	p.generationSeconds.WithLabelValues(model).Observe(duration.Seconds())
}
