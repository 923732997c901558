package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPrometheusRecorder(reg, "s-1")

	r.EnvelopeRouted("master", "ORCHESTRATOR")
	r.EnvelopeRouted("master", "ORCHESTRATOR")
	r.EnvelopeDropped("panelist:Alice", "round")
	r.TurnDispatched("PANELIST", "TURN")
	r.ObserveReply("PANELIST", true, 150*time.Millisecond)
	r.ObserveReply("PANELIST", false, 50*time.Millisecond)
	r.SectionCompleted("ROUND_1")
	r.RoundCompleted("ROUND_1")
	r.ObserveGeneration("scripted", 10, 5, true, time.Millisecond)
	r.ObserveGeneration("scripted", 0, 0, false, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(r.envelopesRouted.WithLabelValues("master", "ORCHESTRATOR")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.envelopesDropped.WithLabelValues("panelist:Alice", "round")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.fallbackReplies.WithLabelValues("PANELIST")), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(r.tokensTotal.WithLabelValues("scripted", "prompt")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.generations.WithLabelValues("scripted", "error")), 0)

	count, err := testutil.GatherAndCount(reg, "interviewsim_reply_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expected := `
# HELP interviewsim_rounds_completed_total Rounds exhausted
# TYPE interviewsim_rounds_completed_total counter
interviewsim_rounds_completed_total{round="ROUND_1",session="s-1"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "interviewsim_rounds_completed_total"))
}

func TestRecordersAreIndependentPerRegistry(t *testing.T) {
	// Two sessions in one process must not collide on registration.
	a := NewPrometheusRecorder(prometheus.NewRegistry(), "a")
	b := NewPrometheusRecorder(prometheus.NewRegistry(), "b")
	a.SectionCompleted("R")
	assert.InDelta(t, 0, testutil.ToFloat64(b.sectionsCompleted.WithLabelValues("R")), 0)
}

func TestNopRecorder(t *testing.T) {
	r := Nop()
	assert.NotPanics(t, func() {
		r.EnvelopeRouted("k", "s")
		r.EnvelopeDropped("a", "r")
		r.TurnDispatched("r", "p")
		r.ObserveReply("r", true, time.Second)
		r.SectionCompleted("R")
		r.RoundCompleted("R")
		r.ObserveGeneration("m", 1, 1, true, time.Second)
	})
}

func TestQueryServiceGetSessionMetrics(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		q := r.Form.Get("query")
		queries = append(queries, q)

		value := "0"
		switch {
		case strings.Contains(q, "turns_dispatched"):
			value = "12"
		case strings.Contains(q, `type="prompt"`):
			value = "300"
		case strings.Contains(q, `type="completion"`):
			value = "120"
		case strings.Contains(q, "reply_latency"):
			value = "0.25"
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000,%q]}]}}`, value)
	}))
	defer srv.Close()

	q, err := NewQueryService(srv.URL)
	require.NoError(t, err)

	m, err := q.GetSessionMetrics(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), m.TurnsDispatched)
	assert.Equal(t, int64(420), m.TotalTokens)
	assert.InDelta(t, 0.25, m.MeanReplySeconds, 1e-9)
	require.NotEmpty(t, queries)
	assert.Contains(t, queries[0], `session="s-1"`)
}
