package embedding

import (
	"context"
	"fmt"
	"time"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	einoEmbedding "github.com/cloudwego/eino/components/embedding"
)

// modelDimensions maps known OpenAI embedding models to their native dimensions.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

const (
	defaultOpenAIModel   = "text-embedding-3-small"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIConfig holds configuration for the OpenAI-compatible provider.
type OpenAIConfig struct {
	// APIKey is the API key for authentication.
	APIKey string

	// BaseURL is the API base URL. Any OpenAI-compatible endpoint works.
	BaseURL string

	// Model is the embedding model name.
	Model string

	// Dimensions requests shortened vectors from models that support it.
	// Zero means the model's native dimension.
	Dimensions int

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// OpenAI embeds text through an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	embedder  einoEmbedding.Embedder
	model     string
	dimension int
}

var _ Provider = (*OpenAI)(nil)

// NewOpenAI creates the provider. The dimension must be known up front,
// either from the config or from the model table.
func NewOpenAI(ctx context.Context, cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedding: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}

	dimension := cfg.Dimensions
	if dimension == 0 {
		dimension = modelDimensions[cfg.Model]
	}
	if dimension == 0 {
		return nil, fmt.Errorf("openai embedding: unknown dimension for model %q", cfg.Model)
	}

	embedCfg := &openaiEmbed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	if cfg.Dimensions > 0 {
		embedCfg.Dimensions = &cfg.Dimensions
	}

	embedder, err := openaiEmbed.NewEmbedder(ctx, embedCfg)
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}

	return &OpenAI{embedder: embedder, model: cfg.Model, dimension: dimension}, nil
}

func (p *OpenAI) Name() string   { return "openai/" + p.model }
func (p *OpenAI) Dimension() int { return p.dimension }

func (p *OpenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := p.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", openAIStatus(err))
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai embed: no embedding returned")
	}
	return vectors[0], nil
}
