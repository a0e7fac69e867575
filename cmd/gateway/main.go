package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/aayushsingh7/vidchemy/internal/config"
	"github.com/aayushsingh7/vidchemy/internal/handlers"
	"github.com/aayushsingh7/vidchemy/internal/middleware"
	"github.com/aayushsingh7/vidchemy/internal/queue"
	"github.com/aayushsingh7/vidchemy/internal/storage"
	"github.com/aayushsingh7/vidchemy/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := config.NewLogger(cfg.LogLevel)

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
	app := handlers.NewApplicationHandler(jobStore, dispatch, buckets, logger)

	fiberApp := fiber.New(fiber.Config{
		BodyLimit: 256 * 1024 * 1024, // short product videos only
	})
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	fiberApp.Use(middleware.RequestLogger(logger))

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "API Gateway is healthy",
		})
	})

	apiV1 := fiberApp.Group("/api/v1")
	apiV1.Post("/listings", app.CreateListing)
	apiV1.Get("/listings/:jobId/status", app.GetListingStatus)

	logger.Infof("Starting API Gateway on %s", cfg.ListenAddr)
	if err := fiberApp.Listen(cfg.ListenAddr); err != nil {
		logger.Fatalf("API Gateway stopped: %v", err)
	}
}
