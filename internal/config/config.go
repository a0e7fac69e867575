package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything both binaries need, loaded from the environment.
// A .env file is honored when present so local development doesn't need a
// wall of exports.
type Config struct {
	ListenAddr string
	LogLevel   string

	SupabaseURL        string
	SupabaseServiceKey string

	NATSURL     string
	JobSubject  string
	WorkerQueue string

	VideoBucket string
	ImageBucket string

	AIServiceURL string

	MaxWorkers   int
	StageTimeout time.Duration
	WorkDir      string
}

// Load reads configuration from the environment. The Supabase URL and
// service key are the only settings without a usable default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:         getenv("LISTEN_ADDR", ":8080"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		SupabaseURL:        getenv("SUPABASE_URL", ""),
		SupabaseServiceKey: getenv("SUPABASE_SERVICE_KEY", ""),
		NATSURL:            getenv("NATS_URL", "nats://127.0.0.1:4222"),
		JobSubject:         getenv("JOB_SUBJECT", "listings.jobs"),
		WorkerQueue:        getenv("WORKER_QUEUE", "listing-workers"),
		VideoBucket:        getenv("VIDEO_BUCKET", "source-videos"),
		ImageBucket:        getenv("IMAGE_BUCKET", "listing-images"),
		AIServiceURL:       getenv("AI_SERVICE_URL", "http://127.0.0.1:9090"),
		WorkDir:            getenv("WORK_DIR", "./data/work"),
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set")
	}

	maxWorkers, err := getenvInt("MAX_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	if maxWorkers < 1 {
		return nil, fmt.Errorf("MAX_WORKERS must be at least 1, got %d", maxWorkers)
	}
	cfg.MaxWorkers = maxWorkers

	timeoutSec, err := getenvInt("STAGE_TIMEOUT_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	cfg.StageTimeout = time.Duration(timeoutSec) * time.Second

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
