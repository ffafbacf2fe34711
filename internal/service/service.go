// Package service is the façade over the indexing and query pipelines. It
// owns no logic of its own; it validates input and delegates.
package service

import (
	"context"
	"fmt"

	"github.com/hireloop/jobrag/internal/agent"
	"github.com/hireloop/jobrag/internal/corpus"
	"github.com/hireloop/jobrag/internal/index"
	"github.com/hireloop/jobrag/internal/indexer"
	"github.com/hireloop/jobrag/internal/retrieval"
)

// Indexer is the batch indexing pipeline.
type Indexer interface {
	Index(ctx context.Context, docs []corpus.Document) (indexer.Report, error)
}

// Querier is the self-correcting query loop.
type Querier interface {
	Run(ctx context.Context, query string, filter map[string]string) (agent.Outcome, error)
}

// SimilaritySearcher is vector-only retrieval, no reranking.
type SimilaritySearcher interface {
	Similar(ctx context.Context, text string, k int, filter map[string]string) ([]retrieval.Result, error)
}

// Service exposes the four public operations: index documents, answer a
// query, find similar chunks, and report index stats.
type Service struct {
	indexer  Indexer
	querier  Querier
	searcher SimilaritySearcher
	index    index.VectorIndex
}

// New wires a Service from its pipelines.
func New(ix Indexer, q Querier, s SimilaritySearcher, vi index.VectorIndex) *Service {
	return &Service{indexer: ix, querier: q, searcher: s, index: vi}
}

// IndexDocuments chunks, embeds, and stores the batch.
func (s *Service) IndexDocuments(ctx context.Context, docs []corpus.Document) (indexer.Report, error) {
	return s.indexer.Index(ctx, docs)
}

// Query answers the question over the indexed corpus.
func (s *Service) Query(ctx context.Context, query string, filter map[string]string) (agent.Outcome, error) {
	if query == "" {
		return agent.Outcome{}, fmt.Errorf("query must not be empty")
	}
	return s.querier.Run(ctx, query, filter)
}

// RetrieveSimilar returns the k chunks nearest to the given text.
func (s *Service) RetrieveSimilar(ctx context.Context, text string, k int, filter map[string]string) ([]retrieval.Result, error) {
	if text == "" {
		return nil, fmt.Errorf("text must not be empty")
	}
	return s.searcher.Similar(ctx, text, k, filter)
}

// Stats reports document and chunk counts.
func (s *Service) Stats(ctx context.Context) (index.Stats, error) {
	return s.index.Stats(ctx)
}
