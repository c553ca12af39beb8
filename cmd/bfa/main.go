package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/auth"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/config"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/dictionary"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/handler"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/cache"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/catalog"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/client"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/history"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/llm"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/observability"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/resilience"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/port"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/service"
)

// historyStore is a chat history backend that can both write and read turns.
type historyStore interface {
	port.HistoryStore
	port.HistoryReader
}

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("redis_cache", cfg.RedisAddr != ""),
		zap.Bool("openai", cfg.OpenAIAPIKey != ""),
		zap.Bool("supabase_history", cfg.SupabaseURL != ""),
		zap.Bool("auth", cfg.JWTSecret != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("generation_timeout", cfg.GenerationTimeout),
		zap.Duration("history_timeout", cfg.HistoryTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	ctx := context.Background()

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "product-assistant-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Dictionaries ---
	dict := dictionary.Default()
	if cfg.DictionaryPath != "" {
		dict, err = dictionary.Load(cfg.DictionaryPath)
		if err != nil {
			logger.Fatal("failed to load dictionaries", zap.String("path", cfg.DictionaryPath), zap.Error(err))
		}
		logger.Info("dictionaries loaded from file", zap.String("path", cfg.DictionaryPath))
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Catalog ---
	db, err := catalog.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to catalog database", zap.Error(err))
	}
	defer db.Close()

	store := catalog.NewPostgresStore(db, resilience.NewGuard("catalog", resilienceCfg, logger))
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure catalog schema", zap.Error(err))
	}

	checks := []handler.HealthCheck{{Name: "catalog", Pinger: store}}

	// --- Cache ---
	var counts port.Cache[int]
	var brands port.Cache[[]domain.BrandCount]
	if cfg.RedisAddr != "" {
		redisCfg := cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		rdb, err := cache.NewRedisClient(ctx, redisCfg)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer rdb.Close()
		counts = cache.NewRedis[int](rdb, redisCfg, "count", cfg.CacheTTL, logger)
		brands = cache.NewRedis[[]domain.BrandCount](rdb, redisCfg, "brands", cfg.CacheTTL, logger)
		checks = append(checks, handler.HealthCheck{Name: "redis", Pinger: redisPinger(rdb)})
		logger.Info("count cache: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		countCache := cache.New[int](cfg.CacheTTL)
		brandCache := cache.New[[]domain.BrandCount](cfg.CacheTTL)
		defer countCache.Close()
		defer brandCache.Close()
		counts, brands = countCache, brandCache
		logger.Info("count cache: in-memory")
	}
	cachedCatalog := catalog.NewCached(store, counts, brands, metrics, logger)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var generator port.ReplyGenerator
	if cfg.OpenAIAPIKey != "" {
		generator = llm.NewOpenAIGenerator(
			llm.Config{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL},
			httpClient,
			resilience.NewGuard("openai", resilienceCfg, logger),
			metrics,
			logger,
		)
		logger.Info("reply generator: openai", zap.String("model", cfg.OpenAIModel))
	} else {
		generator = client.NewAgentGenerator(httpClient, cfg.AgentAPIURL, resilience.NewGuard("agent", resilienceCfg, logger), metrics)
		logger.Info("reply generator: agent", zap.String("url", cfg.AgentAPIURL))
	}

	chatHistory, err := newHistoryStore(ctx, cfg, db, httpClient, resilienceCfg, logger)
	if err != nil {
		logger.Fatal("failed to init history store", zap.Error(err))
	}

	// --- Services ---
	finder := service.NewProductFinder(
		dict,
		cachedCatalog,
		generator,
		chatHistory,
		service.FinderConfig{
			GenerationTimeout: cfg.GenerationTimeout,
			HistoryTimeout:    cfg.HistoryTimeout,
		},
		metrics,
		logger,
	)

	// --- Auth ---
	var validator *auth.TokenValidator
	if cfg.JWTSecret != "" {
		validator = auth.NewTokenValidator(cfg.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET not set: every caller is anonymous and chat history is disabled")
	}

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Finder:    finder,
		History:   chatHistory,
		Validator: validator,
		Checks:    checks,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	// Let in-flight history writes finish before the database closes.
	finder.Drain()

	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
}

// newHistoryStore picks Supabase when configured, otherwise the chat_messages
// table next to the catalog.
func newHistoryStore(ctx context.Context, cfg *config.Config, db *sql.DB, httpClient *http.Client, resilienceCfg resilience.Config, logger *zap.Logger) (historyStore, error) {
	guard := resilience.NewGuard("history", resilienceCfg, logger)

	if cfg.SupabaseURL != "" {
		logger.Info("history store: supabase", zap.String("supabase_url", cfg.SupabaseURL))
		return history.NewSupabaseStore(httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey, guard, logger), nil
	}

	store := history.NewPostgresStore(db, guard)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	logger.Info("history store: postgres")
	return store, nil
}

func redisPinger(rdb *redis.Client) port.Pinger {
	return port.PingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
}
