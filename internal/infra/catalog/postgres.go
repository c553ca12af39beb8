// Package catalog implements the candidate retriever over the product
// database, plus a caching decorator for the count aggregates.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/resilience"
)

var tracer = otel.Tracer("infra/catalog")

// Field weights of the relevance score. A product's relevance is the sum over
// keywords of the weights of every field the keyword matches.
const (
	weightName        = 8
	weightBrand       = 4
	weightCategory    = 4
	weightTags        = 2
	weightDescription = 1
)

// matchClause restricts to active products matching any pattern in $1.
const matchClause = `p.is_active AND (
	p.name ILIKE ANY($1::text[])
	OR p.brand ILIKE ANY($1::text[])
	OR p.category ILIKE ANY($1::text[])
	OR p.description ILIKE ANY($1::text[])
	OR EXISTS (SELECT 1 FROM unnest(p.tags) AS t(tag) WHERE t.tag ILIKE ANY($1::text[]))
)`

var topKQuery = fmt.Sprintf(`
SELECT p.id, p.name, COALESCE(p.brand, ''), COALESCE(p.category, ''), COALESCE(p.sub_category, ''),
       p.price::float8, p.sale_price::float8, p.rating::float8, p.reviews_count, p.sold_count, p.quantity,
       COALESCE(p.description, ''), p.images, p.tags,
       s.id, s.name, s.logo_url,
       (SELECT COALESCE(SUM(
            CASE WHEN p.name ILIKE kw.pattern THEN %d ELSE 0 END
          + CASE WHEN p.brand ILIKE kw.pattern THEN %d ELSE 0 END
          + CASE WHEN p.category ILIKE kw.pattern THEN %d ELSE 0 END
          + CASE WHEN EXISTS (SELECT 1 FROM unnest(p.tags) AS t(tag) WHERE t.tag ILIKE kw.pattern) THEN %d ELSE 0 END
          + CASE WHEN p.description ILIKE kw.pattern THEN %d ELSE 0 END
        ), 0) FROM unnest($1::text[]) AS kw(pattern)) AS relevance
FROM products p
LEFT JOIN stores s ON s.id = p.store_id
WHERE %s
ORDER BY relevance DESC, p.sold_count DESC, p.rating DESC
LIMIT $2`, weightName, weightBrand, weightCategory, weightTags, weightDescription, matchClause)

var countQuery = `SELECT COUNT(*) FROM products p WHERE ` + matchClause

var countByBrandQuery = `
SELECT p.brand, COUNT(*) AS n
FROM products p
WHERE COALESCE(p.brand, '') <> '' AND ` + matchClause + `
GROUP BY p.brand
ORDER BY n DESC, p.brand ASC`

// PostgresStore is the catalog backed by PostgreSQL through the pgx driver.
type PostgresStore struct {
	db    *sql.DB
	guard *resilience.Guard
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// NewPostgresStore creates the catalog store over db.
func NewPostgresStore(db *sql.DB, guard *resilience.Guard) *PostgresStore {
	return &PostgresStore{db: db, guard: guard}
}

// EnsureSchema creates the catalog tables if they do not already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stores (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            logo_url TEXT
        )`,
		`CREATE TABLE IF NOT EXISTS products (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            brand TEXT,
            category TEXT,
            sub_category TEXT,
            price NUMERIC(14, 2) NOT NULL DEFAULT 0,
            sale_price NUMERIC(14, 2),
            rating REAL NOT NULL DEFAULT 0,
            reviews_count INTEGER NOT NULL DEFAULT 0,
            sold_count INTEGER NOT NULL DEFAULT 0,
            quantity INTEGER NOT NULL DEFAULT 0,
            description TEXT,
            images TEXT[] NOT NULL DEFAULT '{}'::TEXT[],
            tags TEXT[] NOT NULL DEFAULT '{}'::TEXT[],
            store_id TEXT REFERENCES stores(id) ON DELETE SET NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_products_active_sold ON products(is_active, sold_count DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_products_brand ON products(brand)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// TopK returns up to limit active products matching any keyword, ranked by
// weighted field relevance, then sold count, then rating.
func (s *PostgresStore) TopK(ctx context.Context, keywords []string, limit int) ([]domain.Candidate, error) {
	ctx, span := tracer.Start(ctx, "PostgresStore.TopK")
	defer span.End()
	span.SetAttributes(attribute.Int("catalog.keywords", len(keywords)), attribute.Int("catalog.limit", limit))

	patterns := LikePatterns(keywords)
	if len(patterns) == 0 || limit <= 0 {
		return []domain.Candidate{}, nil
	}

	return resilience.Execute(ctx, s.guard, func(ctx context.Context) ([]domain.Candidate, error) {
		rows, err := s.db.QueryContext(ctx, topKQuery, pq.Array(patterns), limit)
		if err != nil {
			return nil, fmt.Errorf("query top-k: %w", err)
		}
		defer rows.Close()

		out := []domain.Candidate{}
		for rows.Next() {
			c, err := scanCandidate(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate top-k: %w", err)
		}
		return out, nil
	})
}

// Count returns the number of active products matching any keyword.
func (s *PostgresStore) Count(ctx context.Context, keywords []string) (int, error) {
	ctx, span := tracer.Start(ctx, "PostgresStore.Count")
	defer span.End()

	patterns := LikePatterns(keywords)
	if len(patterns) == 0 {
		return 0, nil
	}

	return resilience.Execute(ctx, s.guard, func(ctx context.Context) (int, error) {
		var n int
		if err := s.db.QueryRowContext(ctx, countQuery, pq.Array(patterns)).Scan(&n); err != nil {
			return 0, fmt.Errorf("query count: %w", err)
		}
		return n, nil
	})
}

// CountByBrand returns matching active products grouped by brand, largest
// group first.
func (s *PostgresStore) CountByBrand(ctx context.Context, keywords []string) ([]domain.BrandCount, error) {
	ctx, span := tracer.Start(ctx, "PostgresStore.CountByBrand")
	defer span.End()

	patterns := LikePatterns(keywords)
	if len(patterns) == 0 {
		return []domain.BrandCount{}, nil
	}

	return resilience.Execute(ctx, s.guard, func(ctx context.Context) ([]domain.BrandCount, error) {
		rows, err := s.db.QueryContext(ctx, countByBrandQuery, pq.Array(patterns))
		if err != nil {
			return nil, fmt.Errorf("query count by brand: %w", err)
		}
		defer rows.Close()

		out := []domain.BrandCount{}
		for rows.Next() {
			var bc domain.BrandCount
			if err := rows.Scan(&bc.Brand, &bc.Count); err != nil {
				return nil, fmt.Errorf("scan brand count: %w", err)
			}
			out = append(out, bc)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate brand counts: %w", err)
		}
		return out, nil
	})
}

func scanCandidate(rows *sql.Rows) (domain.Candidate, error) {
	var (
		c                             domain.Candidate
		salePrice                     sql.NullFloat64
		images, tags                  []string
		storeID, storeName, storeLogo sql.NullString
		relevance                     int
	)
	err := rows.Scan(
		&c.ID, &c.Name, &c.Brand, &c.Category, &c.SubCategory,
		&c.Price, &salePrice, &c.Rating, &c.ReviewsCount, &c.SoldCount, &c.Quantity,
		&c.Description, pq.Array(&images), pq.Array(&tags),
		&storeID, &storeName, &storeLogo,
		&relevance,
	)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("scan candidate: %w", err)
	}

	if salePrice.Valid {
		v := salePrice.Float64
		c.SalePrice = &v
	}
	c.Images = images
	c.Tags = tags
	if storeID.Valid {
		c.Store = &domain.StoreRef{ID: storeID.String, Name: storeName.String, LogoURL: storeLogo.String}
	}
	return c, nil
}

// LikePatterns turns keywords into ILIKE substring patterns, escaping the
// LIKE wildcards. Blank and duplicate keywords are skipped.
func LikePatterns(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, "%"+likeEscaper.Replace(kw)+"%")
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
