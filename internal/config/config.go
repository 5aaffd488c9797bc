package config

import (
	"fmt"
	"log"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel    string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"clinsim-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Chunking
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"100"`

	// Retrieval
	RetrievalK       int     `envconfig:"RETRIEVAL_K" default:"3"`
	OversampleFactor int     `envconfig:"OVERSAMPLE_FACTOR" default:"3"`
	MinSimilarity    float64 `envconfig:"MIN_SIMILARITY" default:"0.70"`

	// Adaptive levels
	LevelUpThreshold     float64 `envconfig:"LEVEL_UP_THRESHOLD" default:"8.0"`
	LevelDownThreshold   float64 `envconfig:"LEVEL_DOWN_THRESHOLD" default:"5.0"`
	CorrectnessThreshold float64 `envconfig:"CORRECTNESS_THRESHOLD" default:"7.0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CLINSIM", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate fails fast on configuration the engine cannot run with.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", c.ChunkOverlap)
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("retrieval K must be positive, got %d", c.RetrievalK)
	}
	if c.OversampleFactor < 1 {
		return fmt.Errorf("oversample factor must be at least 1, got %d", c.OversampleFactor)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("min similarity must be in [0, 1], got %v", c.MinSimilarity)
	}
	if err := domain.ValidateLevelPolicy(c.LevelPolicy()); err != nil {
		return err
	}
	return nil
}

// LevelPolicy assembles the mastery thresholds from config.
func (c *Config) LevelPolicy() domain.LevelPolicy {
	return domain.LevelPolicy{
		LevelUpThreshold:     c.LevelUpThreshold,
		LevelDownThreshold:   c.LevelDownThreshold,
		CorrectnessThreshold: c.CorrectnessThreshold,
	}
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
