package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/assistor/internal/adapter/api"
	"github.com/user/assistor/internal/adapter/api/handler"
	"github.com/user/assistor/internal/adapter/api/middleware"
	"github.com/user/assistor/internal/adapter/assistant"
	"github.com/user/assistor/internal/adapter/compute"
	"github.com/user/assistor/internal/adapter/metrics"
	"github.com/user/assistor/internal/adapter/platform"
	"github.com/user/assistor/internal/adapter/provisioner"
	"github.com/user/assistor/internal/adapter/repository/postgres"
	redisrepo "github.com/user/assistor/internal/adapter/repository/redis"
	"github.com/user/assistor/internal/adapter/vector"
	"github.com/user/assistor/internal/pkg/config"
	"github.com/user/assistor/internal/pkg/logger"
	"github.com/user/assistor/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	m := metrics.New()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database and Redis Connections ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// --- Initialize Adapters ---
	platformClient := platform.NewClient(cfg.PlatformAPIVersion, log)
	backendClient := provisioner.NewClient(cfg.ProvisionEndpoint, cfg.DeprovisionEndpoint, cfg.ProvisionAPIKey, log)
	assistantClient := assistant.NewClient(cfg.AssistantAPIBaseURL, cfg.AssistantAPIKey, log)
	computeClient := compute.NewClient(cfg.ComputeFunctionURL, log)
	vectorClient := vector.NewClient(cfg.VectorStoreHost, cfg.VectorStoreAPIKey, log)

	tenantLock := redisrepo.NewTenantLock(redisClient, log)
	jobQueue, err := redisrepo.NewJobQueue(redisClient, log, cfg.TrainingStream, cfg.TrainingDLQStream, cfg.ConsumerGroup)
	if err != nil {
		log.Error("failed to initialize job queue", "error", err)
		os.Exit(1)
	}
	queueAdminRepo := redisrepo.NewQueueAdminRepository(redisClient, log, cfg.TrainingStream, cfg.TrainingDLQStream)

	apiKeyRepo := postgres.NewAPIKeyRepository(db, log, cfg.APIKeyCacheTTL, m)
	jobRunRepo := postgres.NewJobRunRepository(db, log)

	// --- Initialize Use Cases ---
	provisionService := usecase.NewProvisionService(
		platformClient, platformClient, backendClient, assistantClient, tenantLock,
		log, m, cfg.ProvisionLockTTL, cfg.ProvisionLockWait)
	trainer := usecase.NewTrainer(jobQueue, computeClient, jobRunRepo, log, m, cfg.MaxJobAttempts, cfg.ComputeTimeout)
	embeddingStats := usecase.NewEmbeddingStats(vectorClient, log)
	queueAdmin := usecase.NewQueueAdminUseCase(queueAdminRepo)

	// --- Admin & Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.Handle("/", api.NewAdminRouter(queueAdmin, log))

	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: adminMux,
	}

	go func() {
		log.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- API Server ---
	provisionHandler := handler.NewProvisionHandler(provisionService, log)
	trainingHandler := handler.NewTrainingHandler(trainer, embeddingStats, jobRunRepo, log)

	router := api.NewRouter(cfg, log, apiKeyRepo, provisionHandler, trainingHandler)
	apiServer := &http.Server{
		Addr:         cfg.APIServerAddr,
		Handler:      middleware.Logging(log)(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		log.Info("starting api server", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	log.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("api server shutdown failed", "error", err)
	}

	log.Info("servers shut down gracefully")
}
