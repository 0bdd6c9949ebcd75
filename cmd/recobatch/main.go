package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recobatch/internal/config"
	dbRedis "github.com/kailas-cloud/recobatch/internal/db/redis"
	"github.com/kailas-cloud/recobatch/internal/domain"
	logpkg "github.com/kailas-cloud/recobatch/internal/logger"
	"github.com/kailas-cloud/recobatch/internal/metrics"
	"github.com/kailas-cloud/recobatch/internal/repository/embcache"
	"github.com/kailas-cloud/recobatch/internal/repository/warehouse"
	chiTransport "github.com/kailas-cloud/recobatch/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/recobatch/internal/transport/openai"
	"github.com/kailas-cloud/recobatch/internal/usecase/embedding"
	"github.com/kailas-cloud/recobatch/internal/usecase/pipeline"
	"github.com/kailas-cloud/recobatch/internal/version"
)

const cacheReadinessTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "recobatch:", err)
		os.Exit(1)
	}
}

func run() error {
	// Local development convenience; absence of a .env file is not an error.
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting recobatch run",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("metric", cfg.Recommendation.SimilarityMetric),
		zap.Int("top_n", cfg.Recommendation.TopN),
		zap.Int("workers", cfg.Recommendation.Workers),
	)

	// Register metrics explicitly (no init()).
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wh, err := warehouse.Open(ctx, warehouse.Config{
		DSN:                  cfg.Warehouse.DSN,
		UsersTable:           cfg.Warehouse.UsersTable,
		MediaTable:           cfg.Warehouse.MediaTable,
		RecommendationsTable: cfg.Warehouse.RecommendationsTable,
		UserVectorsTable:     cfg.Warehouse.UserVectorsTable,
		MediaVectorsTable:    cfg.Warehouse.MediaVectorsTable,
	})
	if err != nil {
		return fmt.Errorf("connect warehouse: %w", err)
	}
	defer func() { _ = wh.Close() }()
	logger.Info("Connected to warehouse")

	// Base provider, optionally wrapped with the embedding cache.
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder domain.BatchEmbedder = base
	if len(cfg.Cache.Addrs) > 0 {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			return fmt.Errorf("create cache store: %w", err)
		}
		defer store.Close()
		if err := store.WaitForReady(ctx, cacheReadinessTimeout); err != nil {
			return fmt.Errorf("cache not ready: %w", err)
		}
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
		logger.Info("Embedding cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	batcher := embedding.NewBatcher(
		embedder,
		embedding.DefaultPolicy(cfg.Embedding.MaxRetries),
		cfg.Embedding.BatchSize,
		cfg.Embedding.Provider,
		cfg.Embedding.Model,
		logger,
	)

	// Pass nil interface (not typed nil pointer!) if persistence is off.
	var vectors pipeline.VectorSink
	if cfg.Warehouse.PersistVectors {
		vectors = wh
	}

	svc := pipeline.New(wh, wh, batcher, wh, vectors, wh, pipeline.Options{
		Metric:  cfg.Metric(),
		TopN:    cfg.Recommendation.TopN,
		Workers: cfg.Recommendation.Workers,
		Model:   cfg.Embedding.Model,
	}, logger)

	// Admin server lives for the duration of the run so Prometheus can scrape
	// mid-flight and orchestrators can probe /healthz.
	admin := chiTransport.NewServer(wh, base, logger)
	adminCtx, stopAdmin := context.WithCancel(ctx)
	adminDone := make(chan error, 1)
	go func() {
		adminDone <- admin.Serve(adminCtx, cfg.Admin.Port)
	}()

	sum, runErr := svc.Run(ctx)
	if runErr != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		logger.Error("Batch run failed", zap.Error(runErr))
	} else {
		metrics.PipelineRunsTotal.WithLabelValues("success").Inc()
		logger.Info("Batch run succeeded",
			zap.Int("rows_written", sum.RowsWritten),
			zap.Duration("duration", sum.Duration),
		)
	}

	stopAdmin()
	if err := <-adminDone; err != nil {
		logger.Error("Admin server error", zap.Error(err))
	}

	if runErr != nil {
		return fmt.Errorf("batch run: %w", runErr)
	}
	return nil
}
