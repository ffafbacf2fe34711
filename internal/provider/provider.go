// Package provider defines the external model backends the subsystem depends
// on: embedding generation, text completion, and cross-encoder pair scoring.
// Concrete backends (Ollama, OpenAI, a rerank endpoint) are selected at
// construction time via configuration; core logic only sees these interfaces.
package provider

import (
	"context"
	"errors"
)

// Sentinel errors for provider failures. Callers check these with errors.Is
// to decide between a documented fallback and surfacing the failure.
var (
	// ErrProviderUnavailable means the backend is unreachable or erroring.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRateLimited means the backend rejected the call due to rate limits.
	ErrRateLimited = errors.New("provider rate limited")
)

// EmbeddingProvider maps text to a fixed-length vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer produces a text completion for a prompt. Used for HyDE document
// generation, relevance grading, query rewriting, and answer generation.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PairScorer scores a (query, passage) pair jointly, seeing both texts at
// once rather than comparing independently computed vectors. Higher is more
// relevant. The cross-encoder backend is optional; retrieval degrades to an
// LLM-prompted judgment or vector-score order when it is absent.
type PairScorer interface {
	Score(ctx context.Context, query, passage string) (float64, error)
}
