package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/dictionary"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/grounding"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/observability"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/nlp"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/port"
)

var tracer = otel.Tracer("service/products")

// Retrieval limits.
const (
	DefaultLimit  = 5
	MaxCountLimit = 10
	// maxBrandCounts caps the brand breakdown passed to the generator.
	maxBrandCounts = 5
)

// FinderConfig holds the time bounds of the pipeline's I/O steps.
type FinderConfig struct {
	GenerationTimeout time.Duration
	HistoryTimeout    time.Duration
}

// ProductFinder runs the product-discovery pipeline: translate, classify,
// count, retrieve, generate, persist, ground, format.
type ProductFinder struct {
	translator *nlp.Translator
	classifier *nlp.IntentClassifier
	matcher    *grounding.Matcher
	fallback   *FallbackRetriever

	catalog   port.CatalogRetriever
	generator port.ReplyGenerator
	history   port.HistoryStore

	cfg     FinderConfig
	metrics *observability.Metrics
	logger  *zap.Logger

	pending sync.WaitGroup
}

// NewProductFinder creates the pipeline with all dependencies injected.
// history may be nil, which disables persistence.
func NewProductFinder(
	dict *dictionary.Tables,
	catalog port.CatalogRetriever,
	generator port.ReplyGenerator,
	history port.HistoryStore,
	cfg FinderConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ProductFinder {
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 20 * time.Second
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = 3 * time.Second
	}

	translator := nlp.NewTranslator(dict)
	matcher := grounding.NewMatcher(dict)

	return &ProductFinder{
		translator: translator,
		classifier: nlp.NewIntentClassifier(dict),
		matcher:    matcher,
		fallback:   NewFallbackRetriever(matcher, translator, catalog, logger),
		catalog:    catalog,
		generator:  generator,
		history:    history,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// RetrievalLimit is the number of candidates to retrieve for a count
// question whose total is totalCount.
func RetrievalLimit(totalCount int) int {
	if totalCount > 0 {
		return min(totalCount, MaxCountLimit)
	}
	return DefaultLimit
}

// FindProducts answers a shopping message with a reply and the products the
// reply is about. It always returns a result; every failure of a
// collaborator degrades to a documented fallback.
func (f *ProductFinder) FindProducts(ctx context.Context, message string, userID *string, historyText string) *domain.PipelineResult {
	ctx, span := tracer.Start(ctx, "ProductFinder.FindProducts")
	defer span.End()

	start := time.Now()
	defer func() {
		f.metrics.RecordRequestDuration("find_products", time.Since(start))
	}()

	// --- Step 1: Translate ---
	keywords := f.translator.Keywords(message)
	if len(keywords) == 0 {
		f.metrics.IncrPipelineOutcome(observability.OutcomeEmptyInput)
		return &domain.PipelineResult{Reply: ReplyEmptyInput, Products: []domain.ProductSummary{}}
	}

	// --- Step 2: Classify ---
	intent := f.classifier.Classify(message)
	span.SetAttributes(
		attribute.Int("pipeline.keywords", len(keywords)),
		attribute.Bool("pipeline.is_count", intent.IsCount),
	)
	f.logger.Info("product query",
		zap.Bool("authenticated", userID != nil),
		zap.Int("keywords", len(keywords)),
		zap.Bool("is_count", intent.IsCount),
	)

	// --- Step 3: Count ---
	limit := DefaultLimit
	var opts domain.ReplyOptions
	if intent.IsCount {
		total, brands := f.countMatches(ctx, keywords)
		limit = RetrievalLimit(total)
		opts = domain.ReplyOptions{IsCountQuestion: true, TotalCount: total, BrandCounts: brands}
	}

	// --- Step 4: Retrieve ---
	candidates, err := f.catalog.TopK(ctx, keywords, limit)
	if err != nil {
		f.logger.Warn("catalog retrieval failed", zap.Int("limit", limit), zap.Error(err))
		f.metrics.IncrExternalError("catalog")
		candidates = nil
	}
	if len(candidates) == 0 {
		reply := notFoundReply(intent.IsCount)
		f.saveHistory(ctx, userID, message, reply)
		f.metrics.IncrPipelineOutcome(observability.OutcomeNotFound)
		f.logger.Info("no candidates", zap.Bool("is_count", intent.IsCount))
		return &domain.PipelineResult{Reply: reply, Products: []domain.ProductSummary{}}
	}
	opts.TopProductsLength = len(candidates)

	// --- Step 5: Generate ---
	reply := f.generateReply(ctx, historyText, candidates, message, opts)

	// --- Step 6: Persist ---
	f.saveHistory(ctx, userID, message, reply)

	// --- Step 7: Ground ---
	final := f.ground(ctx, candidates, reply, limit)

	// --- Step 8: Format ---
	f.metrics.IncrPipelineOutcome(observability.OutcomeAnswered)
	return &domain.PipelineResult{Reply: reply, Products: f.summarize(final)}
}

// Drain waits for in-flight history writes. Call it on shutdown.
func (f *ProductFinder) Drain() {
	f.pending.Wait()
}

// countMatches runs count and countByBrand concurrently. A failed lookup is
// logged and counts as zero.
func (f *ProductFinder) countMatches(ctx context.Context, keywords []string) (int, []domain.BrandCount) {
	var (
		total  int
		brands []domain.BrandCount
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := f.catalog.Count(gCtx, keywords)
		if err != nil {
			f.logger.Warn("catalog count failed", zap.Error(err))
			f.metrics.IncrExternalError("catalog")
			return nil
		}
		total = n
		return nil
	})

	g.Go(func() error {
		b, err := f.catalog.CountByBrand(gCtx, keywords)
		if err != nil {
			f.logger.Warn("catalog count by brand failed", zap.Error(err))
			f.metrics.IncrExternalError("catalog")
			return nil
		}
		brands = b
		return nil
	})

	_ = g.Wait()

	if len(brands) > maxBrandCounts {
		brands = brands[:maxBrandCounts]
	}
	return total, brands
}

// generateReply asks the generator for a reply and falls back to the
// deterministic template on error, timeout or an empty answer.
func (f *ProductFinder) generateReply(ctx context.Context, historyText string, candidates []domain.Candidate, message string, opts domain.ReplyOptions) string {
	genCtx, cancel := context.WithTimeout(ctx, f.cfg.GenerationTimeout)
	defer cancel()

	genStart := time.Now()
	text, err := f.generator.GenerateProductReply(genCtx, historyText, FormatCandidates(candidates), message, opts)
	f.metrics.RecordRequestDuration("generate_reply", time.Since(genStart))

	if err == nil && strings.TrimSpace(text) != "" {
		return text
	}
	if err != nil {
		f.logger.Warn("reply generation failed, using template", zap.Error(err))
		f.metrics.IncrExternalError("generator")
	} else {
		f.logger.Warn("reply generation returned empty text, using template")
	}
	f.metrics.IncrReplyFallback()
	return FallbackReply(candidates)
}

// saveHistory persists the exchange in the background. It never blocks the
// response and outlives request cancellation up to HistoryTimeout.
func (f *ProductFinder) saveHistory(ctx context.Context, userID *string, userText, replyText string) {
	if f.history == nil || userID == nil || *userID == "" {
		return
	}
	uid := *userID
	bg := context.WithoutCancel(ctx)

	f.pending.Add(1)
	go func() {
		defer f.pending.Done()

		hctx, cancel := context.WithTimeout(bg, f.cfg.HistoryTimeout)
		defer cancel()

		for _, turn := range []struct{ role, text string }{
			{domain.RoleUser, userText},
			{domain.RoleAssistant, replyText},
		} {
			if err := f.history.Save(hctx, uid, turn.role, turn.text); err != nil {
				f.logger.Warn("history save failed",
					zap.String("user_id", uid),
					zap.String("role", turn.role),
					zap.Error(err),
				)
				f.metrics.IncrExternalError("history")
			}
		}
	}()
}

// ground picks the final product set: the grounded candidates, else a
// re-retrieval from the reply keywords, else the original candidates.
func (f *ProductFinder) ground(ctx context.Context, candidates []domain.Candidate, reply string, limit int) []domain.Candidate {
	grounded := f.matcher.Ground(candidates, reply)
	if len(grounded) > 0 {
		f.metrics.IncrGroundingOutcome(observability.GroundingMatched)
		f.logger.Debug("grounding matched", zap.Int("kept", len(grounded)), zap.Int("of", len(candidates)))
		return grounded
	}

	recovered, err := f.fallback.Retrieve(ctx, reply, limit)
	if err != nil {
		f.logger.Warn("fallback retrieval failed", zap.Error(err))
		f.metrics.IncrExternalError("catalog")
	}
	if len(recovered) > 0 {
		f.metrics.IncrGroundingOutcome(observability.GroundingFallbackFound)
		f.logger.Debug("grounding recovered via fallback retrieval", zap.Int("found", len(recovered)))
		return recovered
	}

	f.metrics.IncrGroundingOutcome(observability.GroundingOriginal)
	return candidates
}

// summarize converts candidates to the response shape, dropping any that
// lack an id.
func (f *ProductFinder) summarize(candidates []domain.Candidate) []domain.ProductSummary {
	out := make([]domain.ProductSummary, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.ID) == "" {
			f.logger.Warn("data integrity: dropping candidate without id", zap.String("name", c.Name))
			f.metrics.IncrDroppedCandidate()
			continue
		}
		out = append(out, toSummary(c))
	}
	return out
}
