// Package metrics exposes the Agent Actor runtime's Prometheus metrics:
// mailbox throughput, LLM call latency/cost, MCP tool execution, and actor
// population, all registered against the default registry so a single
// promhttp.Handler serves them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide set of counters, gauges, and histograms for
// the actor runtime. Construct one with New and pass it down to the
// components that observe it; there is no global singleton.
type Metrics struct {
	// MessagesProcessed counts mailbox events an actor finished handling.
	// Labels: agent_id, outcome (success|error)
	MessagesProcessed *prometheus.CounterVec

	// IterationDuration measures one actor iteration end-to-end, from
	// dequeuing the context to the resolved action.
	// Labels: agent_id
	IterationDuration *prometheus.HistogramVec

	// LLMRequestDuration measures LLM provider call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestsTotal counts LLM calls by provider, model, and status.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMTokensTotal tracks token consumption by provider, model, and kind
	// (prompt|completion).
	LLMTokensTotal *prometheus.CounterVec

	// MCPToolCalls counts MCP tool invocations by server, tool, and status.
	MCPToolCalls *prometheus.CounterVec

	// MCPToolDuration measures MCP tool call latency in seconds.
	MCPToolDuration *prometheus.HistogramVec

	// ActiveActors is a gauge of currently registered actors.
	ActiveActors prometheus.Gauge

	// ActorsSwept counts actors evicted by the idle sweeper.
	ActorsSwept prometheus.Counter

	// ActionChainDepth observes the number of steps a topic's action chain
	// reached before it halted.
	ActionChainDepth prometheus.Histogram
}

// New creates and registers every metric against prometheus's default
// registry. Call this once per process.
func New() *Metrics {
	return &Metrics{
		MessagesProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusactor_messages_processed_total",
				Help: "Total number of mailbox events processed by an actor, by agent and outcome",
			},
			[]string{"agent_id", "outcome"},
		),

		IterationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexusactor_iteration_duration_seconds",
				Help:    "Duration of one actor iteration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"agent_id"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexusactor_llm_request_duration_seconds",
				Help:    "Duration of LLM provider requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusactor_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusactor_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and kind",
			},
			[]string{"provider", "model", "kind"},
		),

		MCPToolCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusactor_mcp_tool_calls_total",
				Help: "Total number of MCP tool calls by server, tool, and status",
			},
			[]string{"server", "tool", "status"},
		),

		MCPToolDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexusactor_mcp_tool_duration_seconds",
				Help:    "Duration of MCP tool calls in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"server", "tool"},
		),

		ActiveActors: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "nexusactor_active_actors",
				Help: "Current number of registered actors",
			},
		),

		ActorsSwept: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "nexusactor_actors_swept_total",
				Help: "Total number of actors evicted by the idle sweeper",
			},
		),

		ActionChainDepth: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nexusactor_action_chain_depth",
				Help:    "Number of steps an action chain reached before halting",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),
	}
}

// RecordMessageProcessed records the outcome of one mailbox event.
func (m *Metrics) RecordMessageProcessed(agentID, outcome string) {
	m.MessagesProcessed.WithLabelValues(agentID, outcome).Inc()
}

// RecordLLMRequest records metrics for a single LLM provider call.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordMCPToolCall records metrics for a single MCP tool invocation.
func (m *Metrics) RecordMCPToolCall(server, tool, status string, durationSeconds float64) {
	m.MCPToolCalls.WithLabelValues(server, tool, status).Inc()
	m.MCPToolDuration.WithLabelValues(server, tool).Observe(durationSeconds)
}

// SetActiveActors sets the current actor population gauge.
func (m *Metrics) SetActiveActors(n int) {
	m.ActiveActors.Set(float64(n))
}

// RecordActorsSwept increments the swept-actor counter by n.
func (m *Metrics) RecordActorsSwept(n int) {
	if n > 0 {
		m.ActorsSwept.Add(float64(n))
	}
}

// RecordActionChainDepth observes the depth an action chain reached.
func (m *Metrics) RecordActionChainDepth(depth int) {
	m.ActionChainDepth.Observe(float64(depth))
}
