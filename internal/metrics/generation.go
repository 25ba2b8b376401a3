package metrics

import "github.com/prometheus/client_golang/prometheus"

// Generation and retrieval Prometheus metrics.
var (
	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citegate",
			Name:      "generation_requests_total",
			Help:      "Total number of generation requests",
		},
		[]string{"provider", "model", "status"},
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "citegate",
			Name:      "generation_request_duration_seconds",
			Help:      "Generation request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"provider", "model"},
	)

	GenerationTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citegate",
			Name:      "generation_tokens_total",
			Help:      "Total generation tokens consumed",
		},
		[]string{"provider", "model", "type"}, // type: "prompt" / "total"
	)

	GenerationBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "citegate",
			Name:      "generation_budget_tokens_remaining",
			Help:      "Remaining generation token budget",
		},
		[]string{"provider", "period"},
	)

	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citegate",
			Name:      "retrieval_requests_total",
			Help:      "Total number of context retrieval requests",
		},
		[]string{"status"},
	)

	RetrievalRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "citegate",
			Name:      "retrieval_request_duration_seconds",
			Help:      "Context retrieval request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	GroundingChunksPerAnswer = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "citegate",
			Name:      "grounding_chunks_per_answer",
			Help:      "Grounding chunks returned per generated answer",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	CitationsPerAnswer = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "citegate",
			Name:      "citations_per_answer",
			Help:      "Distinct cited sources per generated answer",
			Buckets:   []float64{0, 1, 2, 5, 10, 20},
		},
	)
)

var genMetricsRegistered bool

// RegisterGenerationMetrics registers Prometheus generation metrics. Must be called once from main.
func RegisterGenerationMetrics() {
	if genMetricsRegistered {
		return
	}
	prometheus.MustRegister(GenerationRequestsTotal)
	prometheus.MustRegister(GenerationRequestDuration)
	prometheus.MustRegister(GenerationTokensTotal)
	prometheus.MustRegister(GenerationBudgetTokensRemaining)
	prometheus.MustRegister(RetrievalRequestsTotal)
	prometheus.MustRegister(RetrievalRequestDuration)
	prometheus.MustRegister(GroundingChunksPerAnswer)
	prometheus.MustRegister(CitationsPerAnswer)
	genMetricsRegistered = true
}
