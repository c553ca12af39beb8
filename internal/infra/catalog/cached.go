package catalog

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/observability"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/port"
)

// Retriever is a catalog that can also report its own health.
type Retriever interface {
	port.CatalogRetriever
	port.Pinger
}

// Cached decorates a catalog with caches for Count and CountByBrand. TopK is
// never cached because its limit varies per request. Errors are not cached.
type Cached struct {
	inner   Retriever
	counts  port.Cache[int]
	brands  port.Cache[[]domain.BrandCount]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewCached wraps inner with the given caches.
func NewCached(inner Retriever, counts port.Cache[int], brands port.Cache[[]domain.BrandCount], metrics *observability.Metrics, logger *zap.Logger) *Cached {
	return &Cached{inner: inner, counts: counts, brands: brands, metrics: metrics, logger: logger}
}

// TopK delegates to the wrapped catalog.
func (c *Cached) TopK(ctx context.Context, keywords []string, limit int) ([]domain.Candidate, error) {
	return c.inner.TopK(ctx, keywords, limit)
}

// Count returns the cached count for keywords, querying on a miss.
func (c *Cached) Count(ctx context.Context, keywords []string) (int, error) {
	key := CacheKey(keywords)
	if n, ok := c.counts.Get(key); ok {
		c.metrics.IncrCacheHit(observability.CacheCatalogCount)
		return n, nil
	}
	c.metrics.IncrCacheMiss(observability.CacheCatalogCount)

	n, err := c.inner.Count(ctx, keywords)
	if err != nil {
		return 0, err
	}
	c.counts.Set(key, n)
	return n, nil
}

// CountByBrand returns the cached brand breakdown for keywords, querying on a miss.
func (c *Cached) CountByBrand(ctx context.Context, keywords []string) ([]domain.BrandCount, error) {
	key := CacheKey(keywords)
	if b, ok := c.brands.Get(key); ok {
		c.metrics.IncrCacheHit(observability.CacheCatalogBrands)
		return append([]domain.BrandCount(nil), b...), nil
	}
	c.metrics.IncrCacheMiss(observability.CacheCatalogBrands)

	b, err := c.inner.CountByBrand(ctx, keywords)
	if err != nil {
		return nil, err
	}
	c.brands.Set(key, append([]domain.BrandCount(nil), b...))
	c.logger.Debug("cached brand counts", zap.String("key", key), zap.Int("brands", len(b)))
	return b, nil
}

// Ping delegates to the wrapped catalog.
func (c *Cached) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}

// CacheKey is the order-insensitive key of a keyword set.
func CacheKey(keywords []string) string {
	ks := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		ks = append(ks, kw)
	}
	sort.Strings(ks)
	return strings.Join(ks, "\x1f")
}
