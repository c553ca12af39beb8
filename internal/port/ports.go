// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the product
// pipeline from concrete catalog, generation and history implementations.
package port

import (
	"context"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
)

// CatalogRetriever is the ranked/counted catalog lookup contract.
//
// TopK returns up to limit active products whose name, brand, category,
// tags or description match any keyword, ranked by weighted field match
// (name > brand/category > tags > description), ties broken by soldCount
// desc then rating desc. Count is unbounded. CountByBrand is sorted by
// count desc.
type CatalogRetriever interface {
	TopK(ctx context.Context, keywords []string, limit int) ([]domain.Candidate, error)
	Count(ctx context.Context, keywords []string) (int, error)
	CountByBrand(ctx context.Context, keywords []string) ([]domain.BrandCount, error)
}

// ReplyGenerator produces the natural-language product reply. It may fail or
// time out; callers must not depend on it.
type ReplyGenerator interface {
	GenerateProductReply(ctx context.Context, historyText, candidatesText, userMessage string, opts domain.ReplyOptions) (string, error)
}

// HistoryStore persists chat turns. Best-effort.
type HistoryStore interface {
	Save(ctx context.Context, userID, role, text string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Pinger reports whether a dependency is reachable. Used by readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HistoryReader loads the most recent chat turns of a user, oldest first.
type HistoryReader interface {
	Recent(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f(ctx).
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
