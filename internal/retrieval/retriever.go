// Package retrieval implements two-stage retrieval: a wide vector search
// followed by cross-encoder reranking of the candidates.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hireloop/jobrag/internal/corpus"
	"github.com/hireloop/jobrag/internal/index"
	"github.com/hireloop/jobrag/internal/provider"
)

const (
	// DefaultStage1K is how many candidates the vector search returns.
	DefaultStage1K = 50
	// DefaultStage2K is how many reranked results are kept.
	DefaultStage2K = 5

	scoreConcurrency = 3
)

// Result is a retrieved chunk with both stage scores. RerankScore is -1 when
// the rerank stage was skipped and the stage-1 order was kept.
type Result struct {
	Chunk       corpus.Chunk
	VectorScore float32
	RerankScore float64
}

// Config tunes the two retrieval stages.
type Config struct {
	Stage1K int
	Stage2K int
	// Threshold drops reranked results scoring below it. Zero disables
	// filtering. It never applies to stage-1-order fallback results.
	Threshold float64
}

func (c Config) withDefaults() Config {
	if c.Stage1K <= 0 {
		c.Stage1K = DefaultStage1K
	}
	if c.Stage2K <= 0 {
		c.Stage2K = DefaultStage2K
	}
	return c
}

// Retriever embeds a query, pulls a wide candidate set from the vector index,
// and reranks it down to the final result set. The reranker degrades in
// steps: cross-encoder, then LLM pairwise scoring, then stage-1 order.
type Retriever struct {
	embedder provider.EmbeddingProvider
	index    index.VectorIndex
	scorer   provider.PairScorer // may be nil
	fallback provider.PairScorer // may be nil
	cfg      Config
	logger   *slog.Logger
}

// New creates a Retriever. scorer is the cross-encoder stage; fallback is
// tried when the scorer is missing or unavailable. Either may be nil.
func New(embedder provider.EmbeddingProvider, idx index.VectorIndex, scorer, fallback provider.PairScorer, cfg Config) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    idx,
		scorer:   scorer,
		fallback: fallback,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
	}
}

// Retrieve runs both stages for the query. filter restricts stage 1 to
// chunks whose metadata contains every given key/value pair. An empty index
// yields an empty result set, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, filter map[string]string) ([]Result, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := r.index.Search(ctx, vec, r.cfg.Stage1K, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	return r.rerank(ctx, query, candidates), nil
}

// Similar returns the k nearest chunks to the given text by vector score
// alone, without the rerank stage.
func (r *Retriever) Similar(ctx context.Context, text string, k int, filter map[string]string) ([]Result, error) {
	if k <= 0 {
		k = r.cfg.Stage2K
	}
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	candidates, err := r.index.Search(ctx, vec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{Chunk: c.Chunk, VectorScore: c.VectorScore, RerankScore: -1}
	}
	return results, nil
}

// rerank re-scores candidates against the query and keeps the top Stage2K.
// If both scorers fail the stage-1 order is kept, truncated to Stage2K.
func (r *Retriever) rerank(ctx context.Context, query string, candidates []index.Candidate) []Result {
	for _, scorer := range []provider.PairScorer{r.scorer, r.fallback} {
		if scorer == nil {
			continue
		}
		scored, err := r.scoreAll(ctx, scorer, query, candidates)
		if err != nil {
			r.logger.Warn("rerank stage unavailable, degrading", "error", err)
			continue
		}
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].RerankScore > scored[j].RerankScore
		})
		if r.cfg.Threshold > 0 {
			kept := scored[:0]
			for _, res := range scored {
				if res.RerankScore >= r.cfg.Threshold {
					kept = append(kept, res)
				}
			}
			scored = kept
		}
		if len(scored) > r.cfg.Stage2K {
			scored = scored[:r.cfg.Stage2K]
		}
		return scored
	}

	// Last resort: vector-score order.
	r.logger.Warn("all rerank stages unavailable, returning vector order")
	n := min(len(candidates), r.cfg.Stage2K)
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		results[i] = Result{
			Chunk:       candidates[i].Chunk,
			VectorScore: candidates[i].VectorScore,
			RerankScore: -1,
		}
	}
	return results
}

// scoreAll scores every candidate concurrently. The first scorer failure
// aborts the pass so the caller can degrade to the next stage.
func (r *Retriever) scoreAll(ctx context.Context, scorer provider.PairScorer, query string, candidates []index.Candidate) ([]Result, error) {
	scoreCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, len(candidates))
	sem := make(chan struct{}, scoreConcurrency)
	errCh := make(chan error, 1)

	var wg sync.WaitGroup
	for i, cand := range candidates {
		wg.Add(1)
		go func(i int, cand index.Candidate) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-scoreCtx.Done():
				return
			}
			defer func() { <-sem }()

			score, err := scorer.Score(scoreCtx, query, cand.Chunk.Text)
			if err != nil {
				select {
				case errCh <- err:
					cancel()
				default:
				}
				return
			}
			results[i] = Result{Chunk: cand.Chunk, VectorScore: cand.VectorScore, RerankScore: score}
		}(i, cand)
	}
	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
