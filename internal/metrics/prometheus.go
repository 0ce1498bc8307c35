package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nl2api_ask_duration_seconds",
			Help:    "End-to-end ask processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"protocol"},
	)

	AskTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2api_ask_total",
			Help: "Total number of ask requests processed",
		},
		[]string{"status"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nl2api_stage_duration_seconds",
			Help:    "Per-stage pipeline duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"stage"},
	)

	ClassificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2api_classification_total",
			Help: "Classification outcomes by protocol and trust level",
		},
		[]string{"protocol", "trustworthy"},
	)

	ClassificationFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nl2api_classification_fallback_total",
			Help: "Classifications that fell back to the default protocol",
		},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nl2api_classification_confidence",
			Help:    "Classifier confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	RetrievalResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nl2api_retrieval_results_count",
			Help:    "Number of retrieved documents per ask",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	TranslationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nl2api_translations_total",
			Help: "Total utterances translated before retrieval",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2api_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2api_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2api_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsIndexed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nl2api_documents_indexed",
			Help: "Documents in the vector index after the last build",
		},
	)

	UserSatisfaction = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2api_feedback_total",
			Help: "User feedback by helpfulness",
		},
		[]string{"helpful"},
	)

	UpstreamExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2api_upstream_executions_total",
			Help: "Generated requests executed against upstream APIs",
		},
		[]string{"protocol", "status"},
	)
)

func Init() {
	prometheus.MustRegister(AskDuration)
	prometheus.MustRegister(AskTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(ClassificationTotal)
	prometheus.MustRegister(ClassificationFallbacks)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(RetrievalResultsCount)
	prometheus.MustRegister(TranslationsTotal)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsIndexed)
	prometheus.MustRegister(UserSatisfaction)
	prometheus.MustRegister(UpstreamExecutions)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
