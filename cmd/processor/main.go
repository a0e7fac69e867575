package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aayushsingh7/vidchemy/internal/aiclient"
	"github.com/aayushsingh7/vidchemy/internal/config"
	"github.com/aayushsingh7/vidchemy/internal/frames"
	"github.com/aayushsingh7/vidchemy/internal/pipeline"
	"github.com/aayushsingh7/vidchemy/internal/queue"
	"github.com/aayushsingh7/vidchemy/internal/storage"
	"github.com/aayushsingh7/vidchemy/internal/store"
	"github.com/aayushsingh7/vidchemy/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := config.NewLogger(cfg.LogLevel)
	logger.Info("Starting listing processor")

	pgClient, err := config.NewPostgrestClient(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize PostgREST client: %v", err)
	}
	supaClient, err := config.NewSupabaseClient(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	dispatch, err := queue.Connect(cfg.NATSURL, cfg.JobSubject, cfg.WorkerQueue)
	if err != nil {
		logger.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer dispatch.Close()

	jobStore := store.New(pgClient, cfg.SupabaseURL, cfg.SupabaseServiceKey)
	buckets := storage.New(supaClient, cfg.VideoBucket, cfg.ImageBucket)
	ai := aiclient.NewAIClient(cfg.AIServiceURL, logger)
	defer ai.Close()

	executor := pipeline.NewExecutor(
		jobStore,
		ai, // detector
		ai, // transcriber
		ai, // moment selector
		frames.NewExtractor(buckets, cfg.WorkDir),
		ai, // listing generator
		logger,
		cfg.StageTimeout,
	)

	// The ack window covers every stage plus the final commit; a message
	// redelivered inside this window would race its own first delivery.
	ackWait := cfg.StageTimeout*6 + time.Minute
	sub, err := dispatch.PullSubscribe(ackWait)
	if err != nil {
		logger.Fatalf("Failed to subscribe to dispatch queue: %v", err)
	}

	pool := worker.NewPool(cfg.MaxWorkers, sub, executor.Execute, logger)
	pool.Run()
	logger.Infof("Listing processor is running with %d workers", cfg.MaxWorkers)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down listing processor")
	pool.Stop()
	logger.Info("Listing processor shut down gracefully")
}
