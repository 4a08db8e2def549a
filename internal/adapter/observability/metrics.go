package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration observes HTTP request latency.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// ReasoningCallsTotal counts governed reasoning calls by call kind and outcome.
	// Outcome is "external" for validated successes and the fallback reason otherwise.
	ReasoningCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasoning_calls_total",
			Help: "Total governed reasoning calls by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	// ReasoningCallDuration observes only calls that reached the network.
	ReasoningCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reasoning_call_duration_seconds",
			Help:    "Reasoning call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 2.5, 5},
		},
		[]string{"kind"},
	)

	// ProviderRequestsTotal counts raw HTTP requests to the reasoning provider.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total HTTP requests to the reasoning provider",
		},
		[]string{"provider"},
	)
	// ProviderRequestDuration observes raw provider request latency.
	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Reasoning provider HTTP request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	// InterviewsStartedTotal counts created interview sessions.
	InterviewsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interviews_started_total",
			Help: "Total interview sessions created",
		},
	)
	// InterviewsFinalizedTotal counts finalized sessions by verdict.
	InterviewsFinalizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interviews_finalized_total",
			Help: "Total interview sessions finalized by verdict",
		},
		[]string{"verdict"},
	)
	// TurnsEvaluatedTotal counts evaluated turns by provenance.
	TurnsEvaluatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turns_evaluated_total",
			Help: "Total turns evaluated by provenance",
		},
		[]string{"provenance"},
	)
	// AntiCheatSignalsTotal counts raised anti-cheat signals by code.
	AntiCheatSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anticheat_signals_total",
			Help: "Total anti-cheat signals raised by code",
		},
		[]string{"code"},
	)
	// TurnScoreHistogram tracks the distribution of per-turn scores.
	TurnScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "turn_score",
			Help:    "Distribution of per-turn scores [0,100]",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
)

var initOnce sync.Once

// InitMetrics registers all Prometheus collectors once per process.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			ReasoningCallsTotal,
			ReasoningCallDuration,
			ProviderRequestsTotal,
			ProviderRequestDuration,
			InterviewsStartedTotal,
			InterviewsFinalizedTotal,
			TurnsEvaluatedTotal,
			AntiCheatSignalsTotal,
			TurnScoreHistogram,
		)
	})
}

// HTTPMetricsMiddleware records request counts and latencies per chi route.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
