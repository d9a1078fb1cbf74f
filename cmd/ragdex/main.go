package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/config"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	"github.com/kailas-cloud/ragdex/internal/domain"
	logpkg "github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	accountrepo "github.com/kailas-cloud/ragdex/internal/repository/account"
	datasetrepo "github.com/kailas-cloud/ragdex/internal/repository/dataset"
	"github.com/kailas-cloud/ragdex/internal/repository/ratelimit"
	searchrepo "github.com/kailas-cloud/ragdex/internal/repository/search"
	chiTransport "github.com/kailas-cloud/ragdex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/ragdex/internal/transport/openai"
	rerankTransport "github.com/kailas-cloud/ragdex/internal/transport/rerank"
	authuc "github.com/kailas-cloud/ragdex/internal/usecase/auth"
	billinguc "github.com/kailas-cloud/ragdex/internal/usecase/billing"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
	"github.com/kailas-cloud/ragdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// rueidis speaks the same protocol to both Redis and Valkey.
	switch cfg.Database.Driver {
	case "valkey", "redis":
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register retrieval metrics explicitly (no init())
	metrics.RegisterRetrievalMetrics()

	// Provider clients
	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Providers.Embedding.APIKey,
		BaseURL:    cfg.Providers.Embedding.BaseURL,
		Model:      cfg.Providers.Embedding.Model,
		Dimensions: cfg.Providers.Embedding.Dimensions,
		Logger:     logger,
	})
	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:       cfg.Providers.Generation.APIKey,
		BaseURL:      cfg.Providers.Generation.BaseURL,
		DefaultModel: cfg.Providers.Generation.DefaultModel,
		Logger:       logger,
	})
	reranker := rerankTransport.NewClient(&rerankTransport.Config{
		BaseURL: cfg.Providers.Rerank.BaseURL,
		APIKey:  cfg.Providers.Rerank.APIKey,
		Timeout: time.Duration(cfg.Providers.Rerank.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	logger.Info("Provider clients created",
		zap.String("embedding_model", cfg.Providers.Embedding.Model),
		zap.String("generation_model", cfg.Providers.Generation.DefaultModel),
	)

	// Repositories
	accountRepo := accountrepo.New(store)
	datasetRepo := datasetrepo.New(store)
	searchRepo := searchrepo.New(store)
	limiter := ratelimit.New(store, "search-test",
		time.Duration(cfg.RateLimit.WindowSec)*time.Second, cfg.RateLimit.Limit, logger)

	// Use case services
	authSvc := authuc.New(accountRepo, datasetRepo, accountRepo)
	single := retrievaluc.NewSinglePass(
		searchRepo, embedder, generator, reranker, cfg.Models.RerankRegistry(), logger)
	deep := retrievaluc.NewDeep(single, logger)
	billingSvc := billinguc.New(accountRepo, cfg.Pricing, logger)
	healthSvc := healthuc.New(store, embedder)

	if cfg.Seed.Enabled {
		seed(ctx, cfg, accountRepo, datasetRepo, logger)
	}

	server := chiTransport.NewServer(authSvc, limiter, single, deep, billingSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// seed provisions a demo account and dataset for local development.
func seed(
	ctx context.Context, cfg config.Config,
	accounts *accountrepo.Repo, datasets *datasetrepo.Repo, logger *zap.Logger,
) {
	err := accounts.SeedAccount(ctx,
		cfg.Seed.AccountID, cfg.Seed.MemberID, cfg.Seed.AccountName,
		cfg.Seed.BalanceMillipoints, cfg.Seed.APIKey, cfg.Seed.SessionToken,
	)
	if err != nil {
		logger.Warn("Failed to seed account", zap.Error(err))
		return
	}

	err = datasets.Seed(ctx, domain.Dataset{
		ID:             cfg.Seed.DatasetID,
		AccountID:      cfg.Seed.AccountID,
		Name:           cfg.Seed.DatasetName,
		EmbeddingModel: cfg.Providers.Embedding.Model,
	})
	if err != nil {
		logger.Warn("Failed to seed dataset", zap.Error(err))
		return
	}

	logger.Info("Seeded demo account and dataset",
		zap.String("account_id", cfg.Seed.AccountID),
		zap.String("dataset_id", cfg.Seed.DatasetID),
	)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
