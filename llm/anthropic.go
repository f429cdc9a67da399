package llm

import (
	"context"
	"strings"
)

const (
	anthropicBaseURL   = "https://api.anthropic.com/v1"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
)

// AnthropicClient talks to the Messages API.
type AnthropicClient struct {
	api jsonAPI
}

func NewAnthropicClientWithConfig(cfg ClientConfig) *AnthropicClient {
	api := newJSONAPI("anthropic", cfg.BaseURL, anthropicBaseURL, cfg.timeout())
	api.header.Set("x-api-key", cfg.APIKey)
	api.header.Set("anthropic-version", anthropicVersion)
	return &AnthropicClient{api: api}
}

func (c *AnthropicClient) Chat(ctx context.Context, model string, system, user string) (*LLMResponse, error) {
	return c.ChatWithMessages(ctx, model, system, []Message{{Role: "user", Content: user}})
}

// ChatWithMessages sends msgs with system as the top-level prompt. System
// role messages are dropped; the Messages API only accepts one system prompt.
func (c *AnthropicClient) ChatWithMessages(ctx context.Context, model string, system string, msgs []Message) (*LLMResponse, error) {
	req := anthropicRequest{
		Model:     model,
		MaxTokens: anthropicMaxTokens,
		System:    system,
		Messages:  make([]Message, 0, len(msgs)),
	}
	for _, m := range msgs {
		if m.Role != "system" {
			req.Messages = append(req.Messages, m)
		}
	}

	var out anthropicResponse
	if err := c.api.post(ctx, "/messages", req, &out); err != nil {
		return nil, err
	}
	return out.toResponse(), nil
}

type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (r anthropicResponse) toResponse() *LLMResponse {
	var text strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &LLMResponse{
		Content:      text.String(),
		FinishReason: r.StopReason,
		Usage: Usage{
			PromptTokens:     r.Usage.InputTokens,
			CompletionTokens: r.Usage.OutputTokens,
			TotalTokens:      r.Usage.InputTokens + r.Usage.OutputTokens,
		},
	}
}
