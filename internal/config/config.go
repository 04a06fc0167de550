package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	Name          string        `yaml:"name"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxDeliveries int           `yaml:"max_deliveries"` // 1 = no queue-level retry
	RequeueDelay  time.Duration `yaml:"requeue_delay"`
	// MaxClaimRetries bounds requeues after a failed claim write; they do
	// not count against MaxDeliveries.
	MaxClaimRetries int `yaml:"max_claim_retries"`
}

type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	ConsumerID      string        `yaml:"consumer_id"`
	ProcessingLease time.Duration `yaml:"processing_lease"` // negative disables stale-claim takeover
}

type FetcherConfig struct {
	Timeout      time.Duration   `yaml:"timeout"`
	Backoff      []time.Duration `yaml:"backoff"`
	MaxBodyBytes int64           `yaml:"max_body_bytes"`
}

type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type AIConfig struct {
	Provider          string `yaml:"provider"` // groq | gemini | openai | noop
	GeminiKey         string `yaml:"gemini_key"`
	GeminiURL         string `yaml:"gemini_url"`
	OpenAIKey         string `yaml:"openai_key"`
	OpenAIBaseURL     string `yaml:"openai_base_url"`
	GroqKey           string `yaml:"groq_key"`
	GroqBaseURL       string `yaml:"groq_base_url"`
	DefaultModel      string `yaml:"default_model"`
	EmbeddingProvider string `yaml:"embedding_provider"` // gemini | openai | noop
	EmbeddingModel    string `yaml:"embedding_model"`
	MaxOutputTokens   int    `yaml:"max_output_tokens"`
	ConcurrentLimit   int    `yaml:"concurrent_limit"` // max concurrent AI calls
}

type IndexConfig struct {
	Dimension int `yaml:"dimension"`
	TopK      int `yaml:"top_k"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Queue    QueueConfig    `yaml:"queue"`
	Worker   WorkerConfig   `yaml:"worker"`
	Fetcher  FetcherConfig  `yaml:"fetcher"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	AI       AIConfig       `yaml:"ai"`
	Index    IndexConfig    `yaml:"index"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	groqBaseURL         = "https://api.groq.com/openai/v1"
	defaultChunkOverlap = 200
)

// LoadConfig reads the YAML file at path (missing file is allowed), loads a
// .env file from the working directory if present, applies environment
// overrides and defaults, and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// Zero is a valid overlap, so its default is set before decoding
	// rather than inferred from the zero value afterwards.
	cfg := Config{Chunker: ChunkerConfig{ChunkOverlap: defaultChunkOverlap}}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Chunker.ChunkOverlap < 0 {
		return nil, errors.New("chunker.chunk_overlap must not be negative")
	}
	if cfg.Chunker.ChunkOverlap >= cfg.Chunker.ChunkSize {
		return nil, errors.New("chunker.chunk_overlap must be smaller than chunker.chunk_size")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Database.URL, "DATABASE_URL")
	setFromEnv(&cfg.Redis.URL, "REDIS_URL")
	setFromEnv(&cfg.Redis.Password, "REDIS_PASSWORD")
	setFromEnv(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	setFromEnv(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	setFromEnv(&cfg.AI.GroqKey, "GROQ_API_KEY")
	setFromEnv(&cfg.AI.Provider, "AI_PROVIDER")
	setFromEnv(&cfg.AI.DefaultModel, "LLM_MODEL")
	setFromEnv(&cfg.Log.Level, "LOG_LEVEL")
	setFromEnv(&cfg.Worker.ConsumerID, "WORKER_ID")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8000
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 60 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Queue.Name == "" {
		cfg.Queue.Name = "ingest"
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = 5 * time.Second
	}
	if cfg.Queue.MaxDeliveries <= 0 {
		cfg.Queue.MaxDeliveries = 1
	}
	if cfg.Queue.RequeueDelay <= 0 {
		cfg.Queue.RequeueDelay = 5 * time.Second
	}
	if cfg.Queue.MaxClaimRetries <= 0 {
		cfg.Queue.MaxClaimRetries = 5
	}
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 4
	}
	if cfg.Worker.ConsumerID == "" {
		host, _ := os.Hostname()
		cfg.Worker.ConsumerID = host
	}
	if cfg.Worker.ProcessingLease < 0 {
		cfg.Worker.ProcessingLease = 0
	} else if cfg.Worker.ProcessingLease == 0 {
		cfg.Worker.ProcessingLease = 15 * time.Minute
	}
	if cfg.Fetcher.Timeout <= 0 {
		cfg.Fetcher.Timeout = 30 * time.Second
	}
	if len(cfg.Fetcher.Backoff) == 0 {
		cfg.Fetcher.Backoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	}
	if cfg.Fetcher.MaxBodyBytes <= 0 {
		cfg.Fetcher.MaxBodyBytes = 10 << 20
	}
	if cfg.Chunker.ChunkSize <= 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.AI.Provider == "" {
		switch {
		case cfg.AI.GroqKey != "":
			cfg.AI.Provider = "groq"
		case cfg.AI.GeminiKey != "":
			cfg.AI.Provider = "gemini"
		default:
			cfg.AI.Provider = "openai"
		}
	}
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if cfg.AI.GroqBaseURL == "" {
		cfg.AI.GroqBaseURL = groqBaseURL
	}
	if cfg.AI.DefaultModel == "" {
		switch cfg.AI.Provider {
		case "groq":
			cfg.AI.DefaultModel = "llama-3.1-8b-instant"
		case "gemini":
			cfg.AI.DefaultModel = "gemini-2.0-flash"
		default:
			cfg.AI.DefaultModel = "gpt-4o-mini"
		}
	}
	if cfg.AI.EmbeddingProvider == "" {
		if cfg.AI.GeminiKey != "" {
			cfg.AI.EmbeddingProvider = "gemini"
		} else {
			cfg.AI.EmbeddingProvider = "openai"
		}
	}
	cfg.AI.EmbeddingProvider = strings.ToLower(cfg.AI.EmbeddingProvider)
	if cfg.AI.EmbeddingModel == "" {
		if cfg.AI.EmbeddingProvider == "gemini" {
			cfg.AI.EmbeddingModel = "text-embedding-004"
		} else {
			cfg.AI.EmbeddingModel = "text-embedding-3-small"
		}
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 1024
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.Index.Dimension <= 0 {
		cfg.Index.Dimension = 768
	}
	if cfg.Index.TopK <= 0 {
		cfg.Index.TopK = 3
	}
}
