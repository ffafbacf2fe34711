package provider

import (
	"context"
	"errors"
	"time"
)

const (
	defaultCallTimeout = 30 * time.Second
	defaultAttempts    = 2
	defaultRetryDelay  = 500 * time.Millisecond
)

// Retry bounds every external call with a per-attempt timeout and a small
// retry budget for transient failures. The read path has no side effects, so
// repeating a failed call is safe.
type Retry struct {
	Attempts int           // total attempts, default 2
	Timeout  time.Duration // per-attempt timeout, default 30s
	Delay    time.Duration // pause between attempts, default 500ms
}

func (r Retry) attempts() int {
	if r.Attempts <= 0 {
		return defaultAttempts
	}
	return r.Attempts
}

func (r Retry) timeout() time.Duration {
	if r.Timeout <= 0 {
		return defaultCallTimeout
	}
	return r.Timeout
}

func (r Retry) delay() time.Duration {
	if r.Delay <= 0 {
		return defaultRetryDelay
	}
	return r.Delay
}

// retryable reports whether an error is worth a second attempt. Rate limits
// and unreachable backends are transient; anything else fails fast.
func retryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

func call[T any](ctx context.Context, r Retry, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < r.attempts(); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(r.delay()):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout())
		v, err := op(attemptCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		lastErr = err

		// The caller cancelled; its result would be discarded anyway.
		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !retryable(err) {
			break
		}
	}
	return zero, lastErr
}

// WithRetry wraps an EmbeddingProvider with timeout and retry handling.
func WithRetry(p EmbeddingProvider, r Retry) EmbeddingProvider {
	return &retryEmbedder{p: p, r: r}
}

type retryEmbedder struct {
	p EmbeddingProvider
	r Retry
}

func (e *retryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return call(ctx, e.r, func(ctx context.Context) ([]float32, error) {
		return e.p.Embed(ctx, text)
	})
}

// WithCompleteRetry wraps a Completer with timeout and retry handling.
func WithCompleteRetry(c Completer, r Retry) Completer {
	return &retryCompleter{c: c, r: r}
}

type retryCompleter struct {
	c Completer
	r Retry
}

func (rc *retryCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return call(ctx, rc.r, func(ctx context.Context) (string, error) {
		return rc.c.Complete(ctx, prompt)
	})
}

// WithScoreRetry wraps a PairScorer with timeout and retry handling.
func WithScoreRetry(s PairScorer, r Retry) PairScorer {
	return &retryScorer{s: s, r: r}
}

type retryScorer struct {
	s PairScorer
	r Retry
}

func (rs *retryScorer) Score(ctx context.Context, query, passage string) (float64, error) {
	return call(ctx, rs.r, func(ctx context.Context) (float64, error) {
		return rs.s.Score(ctx, query, passage)
	})
}
