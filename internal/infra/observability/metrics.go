package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
)

// Pipeline outcome labels.
const (
	OutcomeAnswered   = "answered"
	OutcomeEmptyInput = "empty_input"
	OutcomeNotFound   = "not_found"
)

// Grounding outcome labels.
const (
	GroundingMatched       = "matched"
	GroundingFallbackFound = "fallback_retrieved"
	GroundingOriginal      = "original_kept"
)

// Catalog cache labels.
const (
	CacheCatalogCount  = "catalog_count"
	CacheCatalogBrands = "catalog_brands"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	tokensUsed        *prometheus.CounterVec
	pipelineOutcomes  *prometheus.CounterVec
	groundingOutcomes *prometheus.CounterVec
	replyFallbacks    prometheus.Counter
	droppedCandidates prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		pipelineOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_product_pipeline_total",
				Help: "Product pipeline runs by terminal state.",
			},
			[]string{"outcome"},
		),
		groundingOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_grounding_total",
				Help: "Grounding results by how the final product set was chosen.",
			},
			[]string{"outcome"},
		),
		replyFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bfa_reply_fallback_total",
				Help: "Replies built from the deterministic template after a generation failure.",
			},
		),
		droppedCandidates: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bfa_dropped_candidates_total",
				Help: "Candidates dropped from the response for lacking an id.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrPipelineOutcome counts a pipeline run by its terminal state.
func (m *Metrics) IncrPipelineOutcome(outcome string) {
	m.pipelineOutcomes.WithLabelValues(outcome).Inc()
}

// IncrGroundingOutcome counts how the final product set was chosen.
func (m *Metrics) IncrGroundingOutcome(outcome string) {
	m.groundingOutcomes.WithLabelValues(outcome).Inc()
}

// IncrReplyFallback counts a templated reply.
func (m *Metrics) IncrReplyFallback() {
	m.replyFallbacks.Inc()
}

// IncrDroppedCandidate counts a candidate dropped for lacking an id.
func (m *Metrics) IncrDroppedCandidate() {
	m.droppedCandidates.Inc()
}

// GetPipelineSnapshot returns a snapshot of pipeline metrics suitable for the
// GET /v1/metrics/pipeline endpoint.
func (m *Metrics) GetPipelineSnapshot() *domain.PipelineMetrics {
	// Prometheus counters expose cumulative values.
	answered := getCounterValue(m.pipelineOutcomes, OutcomeAnswered)
	emptyInput := getCounterValue(m.pipelineOutcomes, OutcomeEmptyInput)
	notFound := getCounterValue(m.pipelineOutcomes, OutcomeNotFound)
	total := answered + emptyInput + notFound

	matched := getCounterValue(m.groundingOutcomes, GroundingMatched)
	fallbackFound := getCounterValue(m.groundingOutcomes, GroundingFallbackFound)
	original := getCounterValue(m.groundingOutcomes, GroundingOriginal)
	grounded := matched + fallbackFound + original

	hits := getCounterValue(m.cacheHits, CacheCatalogCount) + getCounterValue(m.cacheHits, CacheCatalogBrands)
	misses := getCounterValue(m.cacheMisses, CacheCatalogCount) + getCounterValue(m.cacheMisses, CacheCatalogBrands)

	snap := &domain.PipelineMetrics{
		TotalRequests:     int64(total),
		NotFound:          int64(notFound),
		EmptyInput:        int64(emptyInput),
		ReplyFallbacks:    int64(getMetricValue(m.replyFallbacks)),
		DroppedCandidates: int64(getMetricValue(m.droppedCandidates)),
		PromptTokens:      int64(getCounterValue(m.tokensUsed, "prompt")),
		CompletionTokens:  int64(getCounterValue(m.tokensUsed, "completion")),
		Period:            "all_time",
	}
	if answered > 0 {
		snap.ReplyFallbackRate = float64(snap.ReplyFallbacks) / answered
	}
	if grounded > 0 {
		snap.GroundingMatchRate = matched / grounded
		snap.GroundingFallbackRate = fallbackFound / grounded
	}
	if hits+misses > 0 {
		snap.CacheHitRate = hits / (hits + misses)
	}
	return snap
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return getMetricValue(cv.WithLabelValues(label))
}

func getMetricValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
