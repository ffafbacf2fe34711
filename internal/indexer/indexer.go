// Package indexer drives the offline indexing pipeline: chunk each document,
// embed its chunks, and insert them into the vector index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hireloop/jobrag/internal/chunker"
	"github.com/hireloop/jobrag/internal/corpus"
	"github.com/hireloop/jobrag/internal/index"
	"github.com/hireloop/jobrag/internal/provider"
)

const defaultConcurrency = 4

// Report summarizes an indexing batch.
type Report struct {
	Indexed   int
	FailedIDs []string
}

// Indexer chunks, embeds, and upserts documents in parallel batches.
// Documents are independent of each other, so they are processed
// concurrently; the vector index serializes writes per document id.
type Indexer struct {
	chunker     *chunker.Chunker
	embedder    provider.EmbeddingProvider
	index       index.VectorIndex
	concurrency int
	logger      *slog.Logger
}

// New creates an Indexer. If concurrency is <= 0, it defaults to 4.
func New(ch *chunker.Chunker, embedder provider.EmbeddingProvider, idx index.VectorIndex, concurrency int) *Indexer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Indexer{
		chunker:     ch,
		embedder:    embedder,
		index:       idx,
		concurrency: concurrency,
		logger:      slog.Default(),
	}
}

// Index processes the batch and reports how many documents were indexed and
// which failed. Per-document provider failures mark that document failed and
// the batch continues; an unavailable vector store aborts the whole batch.
func (ix *Indexer) Index(ctx context.Context, docs []corpus.Document) (Report, error) {
	if len(docs) == 0 {
		return Report{}, nil
	}

	var mu sync.Mutex
	var report Report
	var storeErr error

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	for _, doc := range docs {
		g.Go(func() error {
			err := ix.indexOne(gCtx, doc)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Indexed++
			case errors.Is(err, index.ErrStoreUnavailable):
				// Fatal: nothing else in the batch can land either.
				storeErr = err
				return err
			case storeErr != nil && errors.Is(err, context.Canceled):
				// Collateral cancellation from a store failure, not a
				// document-level problem.
			default:
				ix.logger.Warn("document failed to index", "document_id", doc.ID, "error", err)
				report.FailedIDs = append(report.FailedIDs, doc.ID)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if storeErr != nil {
			return report, storeErr
		}
		return report, err
	}
	return report, nil
}

// indexOne runs the chunk-embed-upsert pipeline for a single document. The
// upsert atomically replaces any chunks from a previous indexing of the same
// document id.
func (ix *Indexer) indexOne(ctx context.Context, doc corpus.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document has no id")
	}

	chunks, err := ix.chunker.Chunk(ctx, doc)
	if err != nil {
		return fmt.Errorf("chunking document %s: %w", doc.ID, err)
	}
	if len(chunks) == 0 {
		return nil
	}

	for i := range chunks {
		vec, err := ix.embedder.Embed(ctx, chunks[i].Text)
		if err != nil {
			return fmt.Errorf("embedding chunk %d of document %s: %w", i, doc.ID, err)
		}
		chunks[i].Embedding = vec
	}

	if err := ix.index.Upsert(ctx, chunks); err != nil {
		return fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}

	ix.logger.Debug("document indexed", "document_id", doc.ID, "chunks", len(chunks))
	return nil
}
