package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed response ends up in an APIError.
const maxErrorBody = 2048

// APIError is a non-200 reply from a model API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Temporary reports whether the same request may succeed later.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// jsonAPI posts JSON bodies to one provider's base URL.
type jsonAPI struct {
	provider string
	baseURL  string
	header   http.Header
	client   *http.Client
}

func newJSONAPI(provider, baseURL, fallback string, timeout time.Duration) jsonAPI {
	if baseURL == "" {
		baseURL = fallback
	}
	return jsonAPI{
		provider: provider,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		header:   make(http.Header),
		client:   &http.Client{Timeout: timeout},
	}
}

func (a jsonAPI) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.header {
		req.Header[k] = v
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", a.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Provider: a.provider, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", a.provider, err)
	}
	return nil
}
