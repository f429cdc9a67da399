// Package llm holds the chat clients the admission assistant answers with.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hubenschmidt/go-admissions/config"
	"github.com/hubenschmidt/go-admissions/core"
)

// Client sends one chat exchange to a language model.
type Client interface {
	Chat(ctx context.Context, model string, system, user string) (*LLMResponse, error)
	ChatWithMessages(ctx context.Context, model string, system string, msgs []Message) (*LLMResponse, error)
}

type ClientConfig struct {
	APIKey  string
	BaseURL string
	// Timeout in seconds; zero means 60.
	Timeout int
}

func (c ClientConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// New builds the client named by cfg.Provider. It returns a nil client and
// no error when the provider needs an API key and none is set, so callers
// can fall back to offline answers.
func New(cfg config.LLMConfig) (Client, error) {
	cc := ClientConfig{
		APIKey:  cfg.APIKey(),
		BaseURL: cfg.BaseURL,
		Timeout: cfg.TimeoutSecs,
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil
	case "openai":
		if cc.APIKey == "" {
			return nil, nil
		}
		return NewOpenAIClientWithConfig(cc), nil
	case "anthropic":
		if cc.APIKey == "" {
			return nil, nil
		}
		return NewAnthropicClientWithConfig(cc), nil
	case "ollama":
		// Ollama serves an OpenAI-compatible API under /v1 and ignores the key.
		if cc.BaseURL == "" {
			cc.BaseURL = "http://localhost:11434"
		}
		cc.BaseURL = strings.TrimSuffix(strings.TrimSuffix(cc.BaseURL, "/"), "/v1") + "/v1"
		return NewOpenAIClientWithConfig(cc), nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", core.ErrInvalidConfig, cfg.Provider)
	}
}
