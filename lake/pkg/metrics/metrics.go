package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EngineQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lake_oracle_engine_queries_total",
			Help: "Total number of statements sent to the query engine",
		},
		[]string{"driver", "status"},
	)

	EngineQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lake_oracle_engine_query_duration_seconds",
			Help:    "Duration of query engine round trips in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver"},
	)

	EngineRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lake_oracle_engine_rows_returned",
			Help:    "Rows returned per query engine statement",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 1000},
		},
		[]string{"driver"},
	)

	RejectedStatementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lake_oracle_rejected_statements_total",
			Help: "Total number of statements rejected by the read-only policy",
		},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lake_oracle_tool_calls_total",
			Help: "Total number of agent tool calls",
		},
		[]string{"tool", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lake_oracle_tool_call_duration_seconds",
			Help:    "Duration of agent tool calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	AgentStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lake_oracle_agent_steps_total",
			Help: "Total number of agent loop transitions by state",
		},
		[]string{"state"},
	)

	AgentRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lake_oracle_agent_runs_total",
			Help: "Total number of agent runs by outcome",
		},
		[]string{"outcome"},
	)

	ChatCompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lake_oracle_chat_completions_total",
			Help: "Total number of chat completion requests by outcome",
		},
		[]string{"model", "status"},
	)

	ChatSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lake_oracle_chat_sessions_active",
			Help: "Number of chat sessions held in memory",
		},
	)
)
