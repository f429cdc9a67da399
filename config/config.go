// Package config loads the admissions service configuration from YAML,
// a .env file and a few environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hubenschmidt/go-admissions/core"
)

// DatabaseConfig selects the document store.
// Empty DSN keeps documents in memory; postgres:// and postgresql:// select
// PostgreSQL; anything else is a SQLite file path.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// VectorConfig selects the vector index backend: "memory" or "pgvector".
type VectorConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn,omitempty"`
}

// EmbeddingConfig selects and configures the embedding provider.
// Provider is one of "auto", "openai", "ollama" or "offline".
type EmbeddingConfig struct {
	Provider           string `yaml:"provider"`
	Model              string `yaml:"model"`
	BaseURL            string `yaml:"base_url,omitempty"`
	APIKeyEnv          string `yaml:"api_key_env"`
	OllamaURL          string `yaml:"ollama_url,omitempty"`
	Dimension          int    `yaml:"dimension"`
	MaxAttempts        int    `yaml:"max_attempts"`
	AttemptTimeoutSecs int    `yaml:"attempt_timeout_secs"`
	Concurrency        int    `yaml:"concurrency"`
}

// CacheConfig configures the Redis embedding cache. Empty Addr disables it.
type CacheConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"`
}

// RAGConfig holds chunking and retrieval parameters.
type RAGConfig struct {
	ChunkSize     int      `yaml:"chunk_size"`
	ChunkOverlap  int      `yaml:"chunk_overlap"`
	TopK          int      `yaml:"top_k"`
	MinRelevance  *float64 `yaml:"min_relevance,omitempty"`
	OperationSecs int      `yaml:"operation_timeout_secs"`
}

// LLMConfig configures the downstream language model. Without an API key
// the assistant answers offline.
type LLMConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ScoringConfig overrides the default match weights. Zero values keep defaults.
type ScoringConfig struct {
	AcademicCredit    float64 `yaml:"academic_credit,omitempty"`
	CategoricalCredit float64 `yaml:"categorical_credit,omitempty"`
	AcademicWeight    float64 `yaml:"academic_weight,omitempty"`
	InterestWeight    float64 `yaml:"interest_weight,omitempty"`
	KeywordWeight     float64 `yaml:"keyword_weight,omitempty"`
	TextWeight        float64 `yaml:"text_weight,omitempty"`
	NeutralInterest   float64 `yaml:"neutral_interest,omitempty"`
	TopN              int     `yaml:"top_n,omitempty"`
}

// CatalogConfig points at a YAML program catalog. Empty Path uses the built-in one.
type CatalogConfig struct {
	Path string `yaml:"path,omitempty"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Database  DatabaseConfig  `yaml:"database"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	RAG       RAGConfig       `yaml:"rag"`
	LLM       LLMConfig       `yaml:"llm"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// Load reads a config from path. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", core.ErrInvalidConfig, path, err)
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// LoadEnv loads variables from the given .env files, or ./.env when none
// are named. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Vector: VectorConfig{Backend: "memory"},
		Embedding: EmbeddingConfig{
			Provider:           "auto",
			Model:              "text-embedding-3-small",
			APIKeyEnv:          "OPENAI_API_KEY",
			Dimension:          1536,
			MaxAttempts:        3,
			AttemptTimeoutSecs: 15,
			Concurrency:        4,
		},
		Cache: CacheConfig{TTLHours: 24 * 7},
		RAG: RAGConfig{
			ChunkSize:     1000,
			ChunkOverlap:  200,
			TopK:          5,
			OperationSecs: 30,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSecs: 60,
		},
	}
}

func applyDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = def.Vector.Backend
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = def.Embedding.Provider
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = def.Embedding.APIKeyEnv
	}
	if cfg.Embedding.MaxAttempts == 0 {
		cfg.Embedding.MaxAttempts = def.Embedding.MaxAttempts
	}
	if cfg.Embedding.AttemptTimeoutSecs == 0 {
		cfg.Embedding.AttemptTimeoutSecs = def.Embedding.AttemptTimeoutSecs
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = def.Embedding.Concurrency
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = def.RAG.TopK
	}
	if cfg.RAG.OperationSecs == 0 {
		cfg.RAG.OperationSecs = def.RAG.OperationSecs
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = def.LLM.APIKeyEnv
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = def.LLM.TimeoutSecs
	}
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("ADMISSIONS_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("ADMISSIONS_VECTOR_DSN"); v != "" {
		cfg.Vector.Backend = "pgvector"
		cfg.Vector.DSN = v
	}
	if v := os.Getenv("ADMISSIONS_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" && cfg.Embedding.OllamaURL == "" {
		cfg.Embedding.OllamaURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
}

// Validate reports ErrInvalidConfig for settings no component can run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.RAG.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk_size must be positive"))
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size)"))
	}
	if c.RAG.TopK < 0 {
		errs = append(errs, fmt.Errorf("rag.top_k must not be negative"))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimension must be positive"))
	}
	if c.Embedding.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("embedding.max_attempts must be at least 1"))
	}
	switch c.Embedding.Provider {
	case "auto", "openai", "ollama", "offline":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q is not one of auto, openai, ollama, offline", c.Embedding.Provider))
	}
	switch c.Vector.Backend {
	case "memory":
	case "pgvector":
		if c.Vector.DSN == "" {
			errs = append(errs, fmt.Errorf("vector.dsn is required for pgvector"))
		}
		// pgvector outlives the process; an in-memory store would not
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for pgvector"))
		}
	default:
		errs = append(errs, fmt.Errorf("vector.backend %q is not one of memory, pgvector", c.Vector.Backend))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", core.ErrInvalidConfig, errors.Join(errs...))
}

// AttemptTimeout returns the per-call embedding timeout.
func (c EmbeddingConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSecs) * time.Second
}

// APIKey reads the key from the configured environment variable.
func (c EmbeddingConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// TTL returns how long cached vectors live.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// OperationTimeout bounds each retrieval operation.
func (c RAGConfig) OperationTimeout() time.Duration {
	return time.Duration(c.OperationSecs) * time.Second
}

// APIKey reads the key from the configured environment variable.
func (c LLMConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}
