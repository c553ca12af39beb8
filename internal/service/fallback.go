package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/grounding"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/nlp"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/port"
)

// FallbackRetriever re-queries the catalog with keywords taken from the reply
// itself. It runs only when grounding found no evidence among the original
// candidates.
type FallbackRetriever struct {
	matcher    *grounding.Matcher
	translator *nlp.Translator
	catalog    port.CatalogRetriever
	logger     *zap.Logger
}

// NewFallbackRetriever creates a FallbackRetriever.
func NewFallbackRetriever(matcher *grounding.Matcher, translator *nlp.Translator, catalog port.CatalogRetriever, logger *zap.Logger) *FallbackRetriever {
	return &FallbackRetriever{
		matcher:    matcher,
		translator: translator,
		catalog:    catalog,
		logger:     logger,
	}
}

// Retrieve extracts keywords from reply, preferring the important ones, and
// asks the catalog for up to limit products. When extraction finds nothing
// the whole reply goes through the query translator instead.
func (r *FallbackRetriever) Retrieve(ctx context.Context, reply string, limit int) ([]domain.Candidate, error) {
	ctx, span := tracer.Start(ctx, "FallbackRetriever.Retrieve")
	defer span.End()

	keywords := r.matcher.ExtractKeywords(reply)
	source := "reply_important"
	if important := r.matcher.ImportantKeywords(keywords); len(important) > 0 {
		keywords = important
	} else if len(keywords) > 0 {
		source = "reply_all"
	} else {
		keywords = r.translator.Keywords(reply)
		source = "translator"
	}
	span.SetAttributes(
		attribute.String("fallback.source", source),
		attribute.Int("fallback.keywords", len(keywords)),
	)

	if len(keywords) == 0 {
		return []domain.Candidate{}, nil
	}

	r.logger.Debug("fallback retrieval",
		zap.String("source", source),
		zap.Strings("keywords", keywords),
		zap.Int("limit", limit),
	)
	return r.catalog.TopK(ctx, keywords, limit)
}
