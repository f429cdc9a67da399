package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	goopenai "github.com/meguminnnnnnnnn/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-admissions/config"
	"github.com/hubenschmidt/go-admissions/core"
)

type fakeProvider struct {
	dim      int
	failures int32
	calls    atomic.Int32
	vec      []float64
	err      error
	block    bool
}

func (f *fakeProvider) Name() string   { return "fake" }
func (f *fakeProvider) Dimension() int { return f.dim }

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	n := f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if n <= f.failures {
		return nil, f.err
	}
	return f.vec, nil
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		AttemptTimeout: 50 * time.Millisecond,
		BaseDelay:      time.Millisecond,
		MaxDelay:       2 * time.Millisecond,
	}
}

func TestOffline_Deterministic(t *testing.T) {
	ctx := context.Background()
	p, err := NewOffline(64)
	require.NoError(t, err)

	a, err := p.Embed(ctx, "tuition fees for 2025")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "tuition fees for 2025")
	require.NoError(t, err)
	c, err := p.Embed(ctx, "hostel policy")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, OfflineName, p.Name())

	var norm float64
	for _, x := range a {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestOffline_InvalidDimension(t *testing.T) {
	_, err := NewOffline(0)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestRetrying_RecoversFromTransientFailure(t *testing.T) {
	inner := &fakeProvider{dim: 2, failures: 2, err: errors.New("connection reset"), vec: []float64{1, 0}}
	p := WithRetry(inner, fastRetry(3))

	v, err := p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, v)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetrying_ExhaustedIsUpstreamUnavailable(t *testing.T) {
	inner := &fakeProvider{dim: 2, failures: 10, err: errors.New("503")}
	p := WithRetry(inner, fastRetry(3))

	_, err := p.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetrying_DimensionMismatchNotRetried(t *testing.T) {
	inner := &fakeProvider{dim: 3, vec: []float64{1, 0}}
	p := WithRetry(inner, fastRetry(3))

	_, err := p.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.NotErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestRetrying_AttemptTimeout(t *testing.T) {
	inner := &fakeProvider{dim: 2, block: true}
	p := WithRetry(inner, fastRetry(2))

	start := time.Now()
	_, err := p.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestRetrying_ParentCancelStopsRetrying(t *testing.T) {
	inner := &fakeProvider{dim: 2, failures: 10, err: errors.New("down")}
	p := WithRetry(inner, fastRetry(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Embed(ctx, "x")
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.LessOrEqual(t, inner.calls.Load(), int32(1))
}

func TestOllama_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nomic-embed-text", body["model"])
		assert.Equal(t, "hello", body["input"])

		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{{0.1, 0.2, 0.3}}})
	}))
	defer srv.Close()

	p, err := NewOllama(srv.URL+"/v1", "nomic-embed-text", 3)
	require.NoError(t, err)

	v, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, v)
	assert.Equal(t, "ollama/nomic-embed-text", p.Name())
}

func TestOllama_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := NewOllama(srv.URL, "m", 3)
	require.NoError(t, err)

	_, err = WithRetry(p, fastRetry(2)).Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "status 500")
}

func TestNew_Selection(t *testing.T) {
	ctx := context.Background()

	t.Run("auto without credentials is offline", func(t *testing.T) {
		t.Setenv("ADMISSIONS_TEST_EMBED_KEY", "")
		cfg := config.Default().Embedding
		cfg.APIKeyEnv = "ADMISSIONS_TEST_EMBED_KEY"
		cfg.Dimension = 32

		p, err := New(ctx, cfg, config.CacheConfig{})
		require.NoError(t, err)
		assert.Equal(t, OfflineName, p.Name())
		assert.Equal(t, 32, p.Dimension())
	})

	t.Run("auto with ollama url", func(t *testing.T) {
		t.Setenv("ADMISSIONS_TEST_EMBED_KEY", "")
		cfg := config.Default().Embedding
		cfg.APIKeyEnv = "ADMISSIONS_TEST_EMBED_KEY"
		cfg.OllamaURL = "http://localhost:11434"
		cfg.Model = "nomic-embed-text"
		cfg.Dimension = 768

		p, err := New(ctx, cfg, config.CacheConfig{})
		require.NoError(t, err)
		assert.Equal(t, "ollama/nomic-embed-text", p.Name())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := config.Default().Embedding
		cfg.Provider = "bert"

		_, err := New(ctx, cfg, config.CacheConfig{})
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})
}

func TestCached_Embed(t *testing.T) {
	addr := os.Getenv("ADMISSIONS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ADMISSIONS_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	inner := &fakeProvider{dim: 2, vec: []float64{0.6, 0.8}}
	c, err := NewCached(ctx, inner, RedisConfig{Addr: addr, TTL: time.Minute})
	require.NoError(t, err)
	defer c.Close()

	text := "cache-test-" + time.Now().Format(time.RFC3339Nano)
	first, err := c.Embed(ctx, text)
	require.NoError(t, err)
	second, err := c.Embed(ctx, text)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestRetrying_StopsOnRejectedRequest(t *testing.T) {
	inner := &fakeProvider{dim: 2, failures: 10, err: &StatusError{Provider: "fake", StatusCode: http.StatusUnauthorized, Body: "invalid api key"}}
	p := WithRetry(inner, fastRetry(3))

	_, err := p.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestRetrying_RetriesRateLimit(t *testing.T) {
	inner := &fakeProvider{dim: 2, failures: 1, vec: []float64{0, 1},
		err: &StatusError{Provider: "fake", StatusCode: http.StatusTooManyRequests}}
	p := WithRetry(inner, fastRetry(3))

	v, err := p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, v)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestOllama_BadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"model \"m\" not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	p, err := NewOllama(srv.URL, "m", 3)
	require.NoError(t, err)

	_, err = WithRetry(p, fastRetry(3)).Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)

	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusNotFound, status.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStatusError_Temporary(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, (&StatusError{StatusCode: tt.code}).Temporary(), "status %d", tt.code)
	}
	assert.False(t, permanent(errors.New("connection reset")))
}

func TestOpenAIStatus(t *testing.T) {
	err := openAIStatus(fmt.Errorf("embed: %w", &goopenai.APIError{Message: "Incorrect API key", HTTPStatusCode: 401}))
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, 401, status.StatusCode)
	assert.True(t, permanent(err))

	err = openAIStatus(&goopenai.RequestError{HTTPStatusCode: 503, Body: []byte("overloaded")})
	require.ErrorAs(t, err, &status)
	assert.Equal(t, "overloaded", status.Body)
	assert.False(t, permanent(err))

	plain := errors.New("dial tcp: timeout")
	assert.Same(t, plain, openAIStatus(plain))
}
