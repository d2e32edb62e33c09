package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Query metrics
	Queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockqa_queries_total",
			Help: "Total number of processed queries",
		},
		[]string{"outcome"}, // outcome: answered|failed|error
	)

	QueryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockqa_query_latency_seconds",
			Help:    "Query latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)

	// Agent metrics
	AgentIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockqa_agent_iterations",
			Help:    "Reasoning iterations used per query",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
	)

	AgentParseErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stockqa_agent_parse_errors_total",
			Help: "Oracle outputs that did not match the reasoning grammar",
		},
	)

	// Tool metrics
	ToolInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockqa_tool_invocations_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "status"}, // status: success|error
	)

	// Market data metrics
	PriceTierResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockqa_price_tier_results_total",
			Help: "Current-price fallback tier outcomes",
		},
		[]string{"tier", "result"}, // result: hit|empty|error
	)
)

var registerOnce sync.Once

// Init registers all metrics with Prometheus
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(Queries)
		prometheus.MustRegister(QueryLatency)
		prometheus.MustRegister(AgentIterations)
		prometheus.MustRegister(AgentParseErrors)
		prometheus.MustRegister(ToolInvocations)
		prometheus.MustRegister(PriceTierResults)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordQuery records a finished query
func RecordQuery(outcome string, latency time.Duration) {
	Queries.WithLabelValues(outcome).Inc()
	QueryLatency.WithLabelValues(outcome).Observe(latency.Seconds())
}

// RecordToolInvocation records a tool call
func RecordToolInvocation(tool string, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	ToolInvocations.WithLabelValues(tool, status).Inc()
}
