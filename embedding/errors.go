package embedding

import (
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/meguminnnnnnnnn/go-openai"
)

// StatusError is a non-200 reply from an embedding service.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= http.StatusInternalServerError
}

// permanent reports whether err says retrying cannot help, such as a
// rejected API key or a malformed request.
func permanent(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && !t.Temporary()
}

// openAIStatus lifts the HTTP status out of the OpenAI client's errors.
func openAIStatus(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Body: string(reqErr.Body)}
	}
	return err
}
