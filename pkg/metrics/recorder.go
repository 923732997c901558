// Package metrics records interview session metrics and queries them back from Prometheus.
package metrics

import (
	"time"
)

// Recorder receives the events worth counting during a session.
type Recorder interface {
	// EnvelopeRouted counts an envelope forwarded by the dispatcher.
	EnvelopeRouted(kind, sender string)
	// EnvelopeDropped counts an envelope an actor rejected.
	EnvelopeDropped(actor, reason string)
	// TurnDispatched counts a master payload sent by the orchestrator.
	TurnDispatched(role, purpose string)
	// ObserveReply records how long the orchestrator waited for a reply.
	ObserveReply(role string, fallback bool, latency time.Duration)
	// SectionCompleted counts a section marked done.
	SectionCompleted(round string)
	// RoundCompleted counts an exhausted round.
	RoundCompleted(round string)
	// ObserveGeneration records one model call.
	ObserveGeneration(model string, promptTokens, completionTokens int, success bool, duration time.Duration)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

// Nop returns a recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// EnvelopeRouted does nothing.
func (n *NoopRecorder) EnvelopeRouted(_, _ string) {}

// EnvelopeDropped does nothing.
func (n *NoopRecorder) EnvelopeDropped(_, _ string) {}

// TurnDispatched does nothing.
func (n *NoopRecorder) TurnDispatched(_, _ string) {}

// ObserveReply does nothing.
func (n *NoopRecorder) ObserveReply(_ string, _ bool, _ time.Duration) {}

// SectionCompleted does nothing.
func (n *NoopRecorder) SectionCompleted(_ string) {}

// RoundCompleted does nothing.
func (n *NoopRecorder) RoundCompleted(_ string) {}

// ObserveGeneration does nothing.
func (n *NoopRecorder) ObserveGeneration(_ string, _, _ int, _ bool, _ time.Duration) {}
