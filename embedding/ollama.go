package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hubenschmidt/go-admissions/core"
)

// Ollama embeds text with Ollama's native /api/embed endpoint.
type Ollama struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

var _ Provider = (*Ollama)(nil)

// NewOllama creates a client for an Ollama host. The dimension must match
// what the model returns; mismatches surface on the first Embed.
func NewOllama(baseURL, model string, dimension int) (*Ollama, error) {
	if model == "" {
		return nil, fmt.Errorf("%w: ollama model is required", core.ErrInvalidConfig)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: ollama dimension must be positive, got %d", core.ErrInvalidConfig, dimension)
	}
	host := strings.TrimSuffix(baseURL, "/")
	host = strings.TrimSuffix(host, "/v1")
	return &Ollama{
		baseURL:   host,
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *Ollama) Name() string   { return "ollama/" + c.model }
func (c *Ollama) Dimension() int { return c.dimension }

func (c *Ollama) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Provider: "ollama", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings in response")
	}
	return result.Embeddings[0], nil
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}
