package embedding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hubenschmidt/go-admissions/core"
)

// RetryConfig bounds how long a Retrying provider keeps trying.
type RetryConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration
}

// DefaultRetryConfig returns three attempts of up to 15s each.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		AttemptTimeout: 15 * time.Second,
		BaseDelay:      200 * time.Millisecond,
		MaxDelay:       5 * time.Second,
	}
}

// Retrying wraps a provider with per-attempt timeouts, bounded exponential
// backoff and a dimension check on every returned vector.
type Retrying struct {
	inner Provider
	cfg   RetryConfig
}

var _ Provider = (*Retrying)(nil)

// WithRetry wraps p, filling zero fields of cfg from DefaultRetryConfig.
func WithRetry(p Provider, cfg RetryConfig) *Retrying {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	return &Retrying{inner: p, cfg: cfg}
}

func (r *Retrying) Name() string   { return r.inner.Name() }
func (r *Retrying) Dimension() int { return r.inner.Dimension() }

// Embed fails with ErrDimensionMismatch immediately, and with
// ErrUpstreamUnavailable once attempts are exhausted, ctx is done or the
// service rejects the request outright (4xx other than 408 and 429).
func (r *Retrying) Embed(ctx context.Context, text string) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, r.retryDelay(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}

		v, err := r.once(ctx, text)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, core.ErrDimensionMismatch) {
			return nil, err
		}
		lastErr = err
		if ctx.Err() != nil || permanent(err) {
			break
		}
		log.Printf("[embed] %s attempt %d/%d failed: %v", r.inner.Name(), attempt+1, r.cfg.MaxAttempts, err)
	}
	return nil, fmt.Errorf("%w: %s: %w", core.ErrUpstreamUnavailable, r.inner.Name(), lastErr)
}

func (r *Retrying) once(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	defer cancel()

	v, err := r.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(v) != r.inner.Dimension() {
		return nil, fmt.Errorf("%s: %w", r.inner.Name(), core.DimensionError(r.inner.Dimension(), len(v)))
	}
	return v, nil
}

// Close closes the wrapped provider when it holds resources.
func (r *Retrying) Close() error {
	if c, ok := r.inner.(Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *Retrying) retryDelay(attempt int) time.Duration {
	d := r.cfg.BaseDelay << attempt
	if d > r.cfg.MaxDelay || d <= 0 {
		d = r.cfg.MaxDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
