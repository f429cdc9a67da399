package embedding

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hubenschmidt/go-admissions/config"
	"github.com/hubenschmidt/go-admissions/core"
)

// New selects the provider once from configuration:
//   - provider "openai", "ollama" or "offline" is used as named
//   - "auto" picks OpenAI when the API key is set, else Ollama when a URL
//     is set, else offline
//
// The result retries transient failures and, when cache.Addr is set,
// is fronted by Redis.
func New(ctx context.Context, cfg config.EmbeddingConfig, cache config.CacheConfig) (Provider, error) {
	base, err := selectProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[embed] using %s (dimension %d)", base.Name(), base.Dimension())

	var p Provider = WithRetry(base, RetryConfig{
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout(),
	})

	if cache.Addr == "" {
		return p, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cached, err := NewCached(pingCtx, p, RedisConfig{
		Addr:     cache.Addr,
		Password: cache.Password,
		DB:       cache.DB,
		TTL:      cache.TTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return cached, nil
}

func selectProvider(ctx context.Context, cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIFromConfig(ctx, cfg)
	case "ollama":
		return NewOllama(cfg.OllamaURL, cfg.Model, cfg.Dimension)
	case "offline":
		return NewOffline(cfg.Dimension)
	case "auto", "":
		if cfg.APIKey() != "" {
			return newOpenAIFromConfig(ctx, cfg)
		}
		if cfg.OllamaURL != "" {
			return NewOllama(cfg.OllamaURL, cfg.Model, cfg.Dimension)
		}
		return NewOffline(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", core.ErrInvalidConfig, cfg.Provider)
	}
}

func newOpenAIFromConfig(ctx context.Context, cfg config.EmbeddingConfig) (*OpenAI, error) {
	oc := OpenAIConfig{
		APIKey:  cfg.APIKey(),
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.AttemptTimeout(),
	}
	if native, ok := modelDimensions[cfg.Model]; !ok || native != cfg.Dimension {
		oc.Dimensions = cfg.Dimension
	}
	return NewOpenAI(ctx, oc)
}
