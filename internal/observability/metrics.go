package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	TurnsTotal        *prometheus.CounterVec
	TurnStageErrors   *prometheus.CounterVec
	RetrievalTierUsed *prometheus.CounterVec
	SummarizeRuns     *prometheus.CounterVec
	StreamChunks      prometheus.Counter
	ActiveStreams     prometheus.Gauge
	FirstTokenLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TurnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by intent and outcome.",
		}, []string{"intent", "outcome"}),
		TurnStageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_stage_errors_total",
			Help:      "Turn failures by orchestration stage.",
		}, []string{"stage"}),
		RetrievalTierUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_tier_used_total",
			Help:      "Retrieval calls by the tier that answered.",
		}, []string{"tier"}),
		SummarizeRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summarize_runs_total",
			Help:      "Summarization attempts by result.",
		}, []string{"result"}),
		StreamChunks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_chunks_total",
			Help:      "Assistant text chunks forwarded to callers.",
		}),
		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Turns currently streaming a response.",
		}),
		FirstTokenLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_token_latency_ms",
			Help:      "Latency to first assistant text chunk in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000, 5000},
		}),
	}
}

func (m *Metrics) ObserveFirstTokenLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.FirstTokenLatency.Observe(float64(d.Milliseconds()))
}

// TierUsed records which retrieval tier answered a search. Nil-safe so
// components can run without metrics in tests.
func (m *Metrics) TierUsed(tier string) {
	if m == nil {
		return
	}
	m.RetrievalTierUsed.WithLabelValues(tier).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
