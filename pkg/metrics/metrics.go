package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every storefront collector. It is served on /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		ToolResults,
		SearchSettles,
		SearchDuration,
		SummaryRequests,
		ActiveSessions,
	)
}

var ToolResults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_tool_results_total",
		Help: "Tool results delivered to the agent.",
	},
	[]string{"tool", "status"}, // ok | error
)

var SearchSettles = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_search_settles_total",
		Help: "Backend search responses by outcome.",
	},
	[]string{"outcome"}, // fresh | stale | error
)

var SearchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "storefront_search_duration_seconds",
		Help:    "Backend search latency.",
		Buckets: prometheus.DefBuckets,
	},
)

var SummaryRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_summary_requests_total",
		Help: "Summary requests by outcome.",
	},
	[]string{"outcome"}, // ok | error | discarded
)

var ActiveSessions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "storefront_active_sessions",
		Help: "Live storefront sessions.",
	},
)
