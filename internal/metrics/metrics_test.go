package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMessageProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_messages_processed_total",
			Help: "Test messages processed counter",
		},
		[]string{"agent_id", "outcome"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("agentA", "success").Inc()
	counter.WithLabelValues("agentA", "success").Inc()
	counter.WithLabelValues("agentA", "error").Inc()

	expected := `
		# HELP test_messages_processed_total Test messages processed counter
		# TYPE test_messages_processed_total counter
		test_messages_processed_total{agent_id="agentA",outcome="error"} 1
		test_messages_processed_total{agent_id="agentA",outcome="success"} 2
	`
	if err := testutil.CollectAndCompare(counter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}
}

func TestRecordLLMRequestTracksTokens(t *testing.T) {
	m := &Metrics{
		LLMRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t_llm_requests"}, []string{"provider", "model", "status"}),
		LLMRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "t_llm_duration"},
			[]string{"provider", "model"}),
		LLMTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t_llm_tokens"}, []string{"provider", "model", "kind"}),
	}
	m.RecordLLMRequest("anthropic", "claude-haiku", "success", 1.25, 120, 40)

	if got := testutil.ToFloat64(m.LLMTokensTotal.WithLabelValues("anthropic", "claude-haiku", "prompt")); got != 120 {
		t.Errorf("expected 120 prompt tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.LLMTokensTotal.WithLabelValues("anthropic", "claude-haiku", "completion")); got != 40 {
		t.Errorf("expected 40 completion tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("anthropic", "claude-haiku", "success")); got != 1 {
		t.Errorf("expected 1 request recorded, got %v", got)
	}
}

func TestSetActiveActorsAndSweepCounter(t *testing.T) {
	m := &Metrics{
		ActiveActors: prometheus.NewGauge(prometheus.GaugeOpts{Name: "t_active_actors"}),
		ActorsSwept:  prometheus.NewCounter(prometheus.CounterOpts{Name: "t_actors_swept"}),
	}

	m.SetActiveActors(3)
	if got := testutil.ToFloat64(m.ActiveActors); got != 3 {
		t.Errorf("expected gauge 3, got %v", got)
	}

	m.RecordActorsSwept(0)
	m.RecordActorsSwept(2)
	if got := testutil.ToFloat64(m.ActorsSwept); got != 2 {
		t.Errorf("expected 2 swept, got %v", got)
	}
}
