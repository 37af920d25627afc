package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

var global *Config

// Config holds all environment backed configuration for the thought engine.
type Config struct {
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9091"`
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// Redis (streams + pub/sub)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// AI provider
	AIProvider         string `env:"AI_PROVIDER" envDefault:"openai"`
	AIModel            string `env:"AI_MODEL"`
	AIBaseURL          string `env:"AI_BASE_URL"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey    string `env:"ANTHROPIC_API_KEY"`
	PromptCacheEnabled bool   `env:"PROMPT_CACHE_ENABLED" envDefault:"true"`

	// Embeddings
	EmbeddingModel      string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int    `env:"EMBEDDING_DIMENSIONS" envDefault:"1536"`
	EmbeddingCacheSize  int    `env:"EMBEDDING_CACHE_SIZE" envDefault:"10000"`

	// Semantic cache
	CacheSimilarityThreshold float64       `env:"SEMANTIC_CACHE_THRESHOLD" envDefault:"0.92"`
	CacheTTL                 time.Duration `env:"SEMANTIC_CACHE_TTL" envDefault:"168h"`

	// Processing
	WorkerMode         string        `env:"WORKER_MODE" envDefault:"batch"` // "batch" or "stream"
	ContinuousMode     bool          `env:"CONTINUOUS_MODE" envDefault:"false"`
	BatchPollInterval  time.Duration `env:"BATCH_POLL_INTERVAL" envDefault:"10s"`
	InterThoughtDelay  time.Duration `env:"INTER_THOUGHT_DELAY" envDefault:"1s"`
	ProcessingTimeout  time.Duration `env:"PROCESSING_TIMEOUT" envDefault:"10m"`
	MaxGroupConcurrent int           `env:"MAX_GROUP_CONCURRENT" envDefault:"10"`

	// Streamed mode
	StreamName    string        `env:"STREAM_NAME" envDefault:"thoughts:created"`
	ConsumerGroup string        `env:"CONSUMER_GROUP" envDefault:"thought-processors"`
	ConsumerName  string        `env:"CONSUMER_NAME" envDefault:"worker-1"`
	MaxRetries    int           `env:"MAX_RETRIES" envDefault:"3"`
	RetryBackoff  time.Duration `env:"RETRY_BACKOFF" envDefault:"500ms"`

	// Security
	EncryptionSecret string `env:"ENCRYPTION_SECRET"`

	// Observability / Logging
	ServiceName string `env:"SERVICE_NAME" envDefault:"thought-engine"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.AIProvider = strings.ToLower(strings.TrimSpace(cfg.AIProvider))
	cfg.WorkerMode = strings.ToLower(strings.TrimSpace(cfg.WorkerMode))
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	switch cfg.WorkerMode {
	case "batch", "stream":
	default:
		return nil, fmt.Errorf("unsupported WORKER_MODE %q", cfg.WorkerMode)
	}

	if cfg.AIAPIKey() == "" {
		return nil, fmt.Errorf("no API key configured for AI provider %q", cfg.AIProvider)
	}

	if cfg.CacheSimilarityThreshold <= 0 || cfg.CacheSimilarityThreshold > 1 {
		return nil, fmt.Errorf("SEMANTIC_CACHE_THRESHOLD must be in (0, 1], got %f", cfg.CacheSimilarityThreshold)
	}

	global = cfg
	return cfg, nil
}

// GetGlobal returns the global config instance.
func GetGlobal() *Config {
	return global
}

// AIAPIKey returns the API key matching the configured provider.
func (c *Config) AIAPIKey() string {
	switch c.AIProvider {
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return c.OpenAIAPIKey
	}
}

// AIModelName returns the configured model, falling back to a provider default.
func (c *Config) AIModelName() string {
	if c.AIModel != "" {
		return c.AIModel
	}
	switch c.AIProvider {
	case "anthropic":
		return "claude-sonnet-4-20250514"
	default:
		return "gpt-4o-mini"
	}
}
