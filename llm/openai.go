package llm

import "context"

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to the chat completions API. Any OpenAI-compatible
// server works, Ollama's /v1 endpoint included.
type OpenAIClient struct {
	api jsonAPI
}

func NewOpenAIClientWithConfig(cfg ClientConfig) *OpenAIClient {
	api := newJSONAPI("openai", cfg.BaseURL, openAIBaseURL, cfg.timeout())
	if cfg.APIKey != "" {
		api.header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return &OpenAIClient{api: api}
}

func (c *OpenAIClient) Chat(ctx context.Context, model string, system, user string) (*LLMResponse, error) {
	return c.ChatWithMessages(ctx, model, system, []Message{{Role: "user", Content: user}})
}

func (c *OpenAIClient) ChatWithMessages(ctx context.Context, model string, system string, msgs []Message) (*LLMResponse, error) {
	messages := make([]Message, 0, len(msgs)+1)
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, msgs...)

	var out openAIResponse
	err := c.api.post(ctx, "/chat/completions", openAIRequest{Model: model, Messages: messages}, &out)
	if err != nil {
		return nil, err
	}
	return out.toResponse(), nil
}

type openAIRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (r openAIResponse) toResponse() *LLMResponse {
	resp := &LLMResponse{Usage: r.Usage}
	if len(r.Choices) > 0 {
		resp.Content = r.Choices[0].Message.Content
		resp.FinishReason = r.Choices[0].FinishReason
	}
	return resp
}
