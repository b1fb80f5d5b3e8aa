package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/user/assistor/internal/adapter/compute"
	"github.com/user/assistor/internal/adapter/metrics"
	"github.com/user/assistor/internal/adapter/repository/postgres"
	redisrepo "github.com/user/assistor/internal/adapter/repository/redis"
	"github.com/user/assistor/internal/pkg/config"
	"github.com/user/assistor/internal/pkg/logger"
	"github.com/user/assistor/internal/usecase"
)

const (
	processingInterval = 1 * time.Second
	reclaimInterval    = 30 * time.Second
	dequeueBatchSize   = 10
	reclaimBatchSize   = 10
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting training worker")

	// Create a context that we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stopChan
		log.Info("shutdown signal received, stopping worker...")
		cancel()
	}()

	// Connect to Redis
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
	log.Info("connected to redis")

	// Connect to PostgreSQL
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
	log.Info("connected to postgres")

	// Create a unique consumer name for this instance
	consumerName, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumerName = "worker-default"
	}

	// Instantiate repositories and the trainer
	m := metrics.New()

	jobQueue, err := redisrepo.NewJobQueue(redisClient, log, cfg.TrainingStream, cfg.TrainingDLQStream, cfg.ConsumerGroup)
	if err != nil {
		log.Error("failed to initialize job queue", "error", err)
		os.Exit(1)
	}
	jobRunRepo := postgres.NewJobRunRepository(db, log)
	computeClient := compute.NewClient(cfg.ComputeFunctionURL, log)

	trainer := usecase.NewTrainer(jobQueue, computeClient, jobRunRepo, log, m, cfg.MaxJobAttempts, cfg.ComputeTimeout)

	// Start the worker loops
	processTicker := time.NewTicker(processingInterval)
	defer processTicker.Stop()
	reclaimTicker := time.NewTicker(reclaimInterval)
	defer reclaimTicker.Stop()

	log.Info("training worker started", "group", cfg.ConsumerGroup, "consumer", consumerName)

Loop:
	for {
		select {
		case <-processTicker.C:
			if _, err := trainer.ProcessBatch(ctx, cfg.ConsumerGroup, consumerName, dequeueBatchSize); err != nil {
				log.Error("error processing batch", "error", err)
			}
		case <-reclaimTicker.C:
			reclaimed, err := trainer.ReclaimStale(ctx, cfg.ConsumerGroup, consumerName, cfg.ReclaimMinIdle, reclaimBatchSize)
			if err != nil {
				log.Error("error reclaiming stale jobs", "error", err)
			}
			if reclaimed > 0 {
				log.Info("reclaimed stale jobs", "count", reclaimed)
			}
		case <-ctx.Done():
			log.Info("context cancelled, shutting down worker loop")
			break Loop
		}
	}

	log.Info("training worker shut down gracefully")
}
