package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/config"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/ports"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/usecase"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/cache/semcache"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/chunking"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/extractor"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/llm/ollama"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/queue/nats"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/repository/postgres"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/resilience"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/storage/localfs"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/vector/qdrant"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/observability/metrics"
)

// App is the API process: the chat pipeline plus its operator surfaces.
type App struct {
	Config config.Config

	Chat     ports.ChatService
	Cache    ports.CacheAdmin
	Bus      ports.CacheInvalidationBus
	Ingest   ports.IngestQueue
	Sessions ports.SessionAdmin
	Metrics  *metrics.HTTPServerMetrics

	db    *sql.DB
	queue *nats.Queue

	closeFn func()
}

// Worker is the ingestion process.
type Worker struct {
	Config config.Config

	Queue    ports.IngestQueue
	IngestUC ports.KnowledgeIngestor
	Metrics  *metrics.WorkerMetrics

	closeFn func()
}

// ResolveConfig applies the optional tuning file on top of env settings.
func ResolveConfig(cfg config.Config) (config.Config, error) {
	if cfg.RAGTuningFile == "" {
		return cfg, nil
	}
	tuning, err := config.LoadTuning(cfg.RAGTuningFile)
	if err != nil {
		return cfg, fmt.Errorf("load tuning file: %w", err)
	}
	tuning.Apply(&cfg)
	return cfg, nil
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	executor := resilience.NewExecutorWithLogger(resilienceConfig(cfg), logger)

	ollamaClient := ollama.NewWithResilience(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)
	vectorDB := qdrant.NewWithResilience(cfg.QdrantURL, cfg.QdrantCollection, executor)

	var db *sql.DB
	var history ports.ConversationHistory
	var sessions ports.SessionAdmin
	if cfg.PostgresDSN != "" {
		var err error
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		repo := postgres.NewConversationRepository(db)
		history = repo
		sessions = repo
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSIngestSubject, cfg.NATSCacheSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics("api")

	var lexical ports.LexicalIndex
	if cfg.QdrantLexicalEnabled {
		lexical = vectorDB
	}

	deps := usecase.ChatDependencies{
		Embedder:  embedder,
		Optimizer: usecase.NewQueryOptimizer(generator, cfg.OllamaTimeout, logger),
		Retriever: usecase.NewMultiStrategyRetriever(embedder, vectorDB, lexical, cfg.RAGHydeTopK, cfg.OllamaTimeout, logger),
		Reranker: usecase.NewReranker(usecase.RerankWeights{
			Base:      cfg.RerankBaseWeight,
			Lexical:   cfg.RerankLexicalWeight,
			Phrase:    cfg.RerankPhraseWeight,
			Length:    cfg.RerankLengthWeight,
			Threshold: cfg.RAGDiversityThreshold,
		}),
		Generator: generator,
		Fallback: usecase.NewFallbackPolicy(
			usecase.FallbackThresholds{
				VeryLowConfidence: cfg.FallbackVeryLowConfidence,
				LowConfidence:     cfg.FallbackLowConfidence,
				MediumConfidence:  cfg.FallbackMediumConfidence,
				MinContextQuality: cfg.FallbackMinContextQuality,
			},
			usecase.EscalationContacts{
				Technical: cfg.SupportEmail,
				Billing:   cfg.BillingEmail,
				Sales:     cfg.SalesEmail,
			},
		),
		History:  history,
		Observer: httpMetrics,
	}

	app := &App{
		Config:   cfg,
		Bus:      queue,
		Ingest:   queue,
		Sessions: sessions,
		Metrics:  httpMetrics,
		db:       db,
		queue:    queue,
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	if cfg.CacheEnabled {
		cache := semcache.New(semcache.Config{
			SimilarityThreshold: cfg.CacheSimilarityThreshold,
			TTL:                 cfg.CacheTTL,
			MaxSize:             cfg.CacheMaxSize,
		})
		deps.Cache = cache
		app.Cache = cache
		httpMetrics.RegisterCacheStats(cache.Stats)

		wg.Add(2)
		go func() {
			defer wg.Done()
			err := queue.SubscribeCacheInvalidated(bgCtx, func(_ context.Context, pattern string) error {
				removed := cache.Invalidate(pattern)
				logger.Info("cache_invalidated_remote", "pattern", pattern, "removed", removed)
				return nil
			})
			if err != nil {
				logger.Error("cache_invalidation_subscribe_failed", "error", err)
			}
		}()
		go func() {
			defer wg.Done()
			runCacheCleanup(bgCtx, cache, cfg.CacheCleanupInterval, logger)
		}()
	}

	app.Chat = usecase.NewChatUseCase(deps, usecase.ChatOptions{
		TopKPerQuery:      cfg.RAGTopKPerQuery,
		RerankTopK:        cfg.RAGRerankTopK,
		RRFK:              cfg.RAGFusionRRFK,
		HybridAlpha:       cfg.RAGHybridAlpha,
		HistoryLimit:      cfg.RAGHistoryLimit,
		EmbedTimeout:      cfg.OllamaTimeout,
		GenerationTimeout: cfg.OllamaTimeout,
		CacheEnabled:      cfg.CacheEnabled,
	}, logger)

	app.closeFn = func() {
		cancel()
		wg.Wait()
		queue.Close()
		if db != nil {
			_ = db.Close()
		}
	}
	return app, nil
}

// Health reports whether the stateful dependencies are reachable.
func (a *App) Health(ctx context.Context) error {
	if a.queue != nil && !a.queue.Connected() {
		return errors.New("nats disconnected")
	}
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func NewWorker(_ context.Context, cfg config.Config, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	executor := resilience.NewExecutorWithLogger(resilienceConfig(cfg), logger)

	storage, err := localfs.New(cfg.KBDir)
	if err != nil {
		return nil, fmt.Errorf("init knowledge storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSIngestSubject, cfg.NATSCacheSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.NewWithResilience(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	vectorDB := qdrant.NewWithResilience(cfg.QdrantURL, cfg.QdrantCollection, executor)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	ingestUC := usecase.NewKnowledgeIngestUseCase(storage, extractor.NewRouter(), chunker, embedder, vectorDB, queue, logger)

	return &Worker{
		Config:   cfg,
		Queue:    queue,
		IngestUC: ingestUC,
		Metrics:  metrics.NewWorkerMetrics("worker"),
		closeFn:  queue.Close,
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	rc.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	rc.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	rc.CallTimeout = cfg.ResilienceCallTimeout
	rc.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	rc.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	rc.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	rc.Overrides = resilience.ChatDependencyOverrides(cfg.ResilienceCallTimeout, cfg.ResilienceFastCallTimeout)
	return rc
}

type expiringCache interface {
	CleanupExpired() int
}

func runCacheCleanup(ctx context.Context, cache expiringCache, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := cache.CleanupExpired(); removed > 0 {
				logger.Info("cache_cleanup", "removed", removed)
			}
		}
	}
}

var (
	_ ports.CacheAdmin    = (*semcache.Cache)(nil)
	_ ports.ResponseCache = (*semcache.Cache)(nil)
)
