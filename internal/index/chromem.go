package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/hireloop/jobrag/internal/corpus"
)

// Compile-time check that ChromemIndex implements VectorIndex.
var _ VectorIndex = (*ChromemIndex)(nil)

const chromemCollection = "jobrag_chunks"

// Reserved metadata keys used to carry chunk identity through chromem.
// Caller metadata must not use these keys.
const (
	metaDocumentID = "document_id"
	metaOrdinal    = "ordinal"
)

// ChromemIndex is an embedded, in-memory VectorIndex backed by chromem-go.
// It is non-durable and intended for development and tests; the SQLite
// backend is the default for real corpora.
type ChromemIndex struct {
	col *chromem.Collection

	// mu serializes document replacement so a re-index never leaves a mix of
	// old and new chunks visible, guards docChunks, and keeps Search's k
	// clamp valid until the query runs.
	mu        sync.Mutex
	docChunks map[string]int
}

// NewChromem creates an empty in-memory index.
func NewChromem() (*ChromemIndex, error) {
	db := chromem.NewDB()

	// Embeddings are always precomputed by the indexing service; the
	// collection-level embedding func must never run.
	col, err := db.GetOrCreateCollection(chromemCollection, nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("chromem index only accepts precomputed embeddings")
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating collection: %v", ErrStoreUnavailable, err)
	}

	return &ChromemIndex{col: col, docChunks: make(map[string]int)}, nil
}

// Upsert inserts chunks, replacing all stored chunks of each document in the
// batch.
func (c *ChromemIndex) Upsert(ctx context.Context, chunks []corpus.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool)
	for _, ch := range chunks {
		if seen[ch.DocumentID] {
			continue
		}
		seen[ch.DocumentID] = true
		if err := c.deleteLocked(ctx, ch.DocumentID); err != nil {
			return err
		}
	}

	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		meta := make(map[string]string, len(ch.Metadata)+2)
		for k, v := range ch.Metadata {
			meta[k] = v
		}
		meta[metaDocumentID] = ch.DocumentID
		meta[metaOrdinal] = strconv.Itoa(ch.Ordinal)

		docs[i] = chromem.Document{
			ID:        ch.ID,
			Content:   ch.Text,
			Metadata:  meta,
			Embedding: ch.Embedding,
		}
	}

	// Concurrency of 1: embeddings are already computed.
	if err := c.col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("%w: adding documents: %v", ErrStoreUnavailable, err)
	}

	for _, ch := range chunks {
		c.docChunks[ch.DocumentID]++
	}
	return nil
}

// Search returns the k nearest chunks by cosine similarity, optionally
// restricted by metadata equality filters.
func (c *ChromemIndex) Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Candidate, error) {
	if k <= 0 {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// chromem rejects nResults greater than the collection size; a concurrent
	// delete must not shrink the collection between the clamp and the query.
	count := c.col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	var where map[string]string
	if len(filter) > 0 {
		where = filter
	}

	results, err := c.col.QueryEmbedding(ctx, vector, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: querying collection: %v", ErrStoreUnavailable, err)
	}

	candidates := make([]Candidate, len(results))
	for i, r := range results {
		ordinal, _ := strconv.Atoi(r.Metadata[metaOrdinal])

		meta := make(map[string]string, len(r.Metadata))
		for key, v := range r.Metadata {
			if key == metaDocumentID || key == metaOrdinal {
				continue
			}
			meta[key] = v
		}

		candidates[i] = Candidate{
			Chunk: corpus.Chunk{
				ID:         r.ID,
				DocumentID: r.Metadata[metaDocumentID],
				Ordinal:    ordinal,
				Text:       r.Content,
				Embedding:  r.Embedding,
				Metadata:   meta,
			},
			VectorScore: r.Similarity,
		}
	}
	return candidates, nil
}

// Delete removes all chunks belonging to the document.
func (c *ChromemIndex) Delete(ctx context.Context, documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteLocked(ctx, documentID)
}

func (c *ChromemIndex) deleteLocked(ctx context.Context, documentID string) error {
	if c.docChunks[documentID] == 0 {
		return nil
	}
	if err := c.col.Delete(ctx, map[string]string{metaDocumentID: documentID}, nil); err != nil {
		return fmt.Errorf("%w: deleting document %s: %v", ErrStoreUnavailable, documentID, err)
	}
	delete(c.docChunks, documentID)
	return nil
}

// Stats reports document and chunk counts.
func (c *ChromemIndex) Stats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		DocumentCount: len(c.docChunks),
		ChunkCount:    c.col.Count(),
	}, nil
}

// Close is a no-op for the in-memory backend.
func (c *ChromemIndex) Close() error {
	return nil
}
