package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	APIServerAddr   string `env:"API_SERVER_ADDR" envDefault:":8080"`
	AdminServerAddr string `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`

	RedisURL    string `env:"REDIS_URL,required"`
	PostgresURL string `env:"POSTGRES_URL,required"`

	// Storefront platform Admin API (tenant directory + shop descriptor).
	PlatformAPIVersion string `env:"PLATFORM_API_VERSION" envDefault:"2024-07"`

	// Provisioning backend.
	ProvisionEndpoint   string `env:"PROVISION_ENDPOINT,required"`
	DeprovisionEndpoint string `env:"DEPROVISION_ENDPOINT,required"`
	ProvisionAPIKey     string `env:"PROVISION_API_KEY,required"`

	// Assistant configuration API.
	AssistantAPIBaseURL string `env:"ASSISTANT_API_BASE_URL" envDefault:"https://api.openai.com/v1"`
	AssistantAPIKey     string `env:"ASSISTANT_API_KEY,required"`

	// Batch-compute function producing the embeddings.
	ComputeFunctionURL string        `env:"COMPUTE_FUNCTION_URL,required"`
	ComputeTimeout     time.Duration `env:"COMPUTE_TIMEOUT" envDefault:"5m"`

	// Vector store stats endpoint.
	VectorStoreHost   string `env:"VECTOR_STORE_HOST,required"`
	VectorStoreAPIKey string `env:"VECTOR_STORE_API_KEY,required"`

	// Training queue.
	TrainingStream    string        `env:"TRAINING_STREAM" envDefault:"training_jobs"`
	TrainingDLQStream string        `env:"TRAINING_DLQ_STREAM" envDefault:"training_jobs_dead"`
	ConsumerGroup     string        `env:"CONSUMER_GROUP" envDefault:"training-workers"`
	MaxJobAttempts    int64         `env:"MAX_JOB_ATTEMPTS" envDefault:"5"`
	ReclaimMinIdle    time.Duration `env:"RECLAIM_MIN_IDLE" envDefault:"5m"`

	// Provisioning critical section.
	ProvisionLockTTL  time.Duration `env:"PROVISION_LOCK_TTL" envDefault:"30s"`
	ProvisionLockWait time.Duration `env:"PROVISION_LOCK_WAIT" envDefault:"15s"`

	// HTTP surface.
	APIKeyCacheTTL     time.Duration `env:"API_KEY_CACHE_TTL" envDefault:"5m"`
	TrainingRatePerMin float64       `env:"TRAINING_RATE_PER_MINUTE" envDefault:"6"`
	TrainingRateBurst  int           `env:"TRAINING_RATE_BURST" envDefault:"3"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
