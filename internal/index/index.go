// Package index provides vector storage and cosine similarity search over
// document chunks. Two backends are available: SQLite (durable, brute-force
// scan) and chromem-go (embedded in-memory, for development and tests).
package index

import (
	"context"
	"errors"

	"github.com/hireloop/jobrag/internal/corpus"
)

// ErrStoreUnavailable means the backing store is unreachable or failing.
// Indexing and querying must surface it immediately; callers never proceed
// against a silently empty index.
var ErrStoreUnavailable = errors.New("vector store unavailable")

// Candidate is a stage-1 retrieval result: a chunk with its cosine-derived
// similarity score (higher = more similar).
type Candidate struct {
	Chunk       corpus.Chunk
	VectorScore float32
}

// Stats summarizes index contents.
type Stats struct {
	DocumentCount int
	ChunkCount    int
}

// VectorIndex stores chunk vectors with metadata and supports
// nearest-neighbor search with optional metadata equality filtering.
//
// Upsert atomically replaces the full chunk set of every document present in
// the batch: from the caller's point of view there is never a partial overlap
// of old and new chunks. Concurrent Upsert calls for disjoint document IDs
// are safe; calls touching the same document ID are serialized with
// last-writer-wins semantics.
type VectorIndex interface {
	// Upsert inserts the chunks, replacing all previously stored chunks of
	// each document that appears in the batch.
	Upsert(ctx context.Context, chunks []corpus.Chunk) error

	// Search returns the k nearest chunks by cosine similarity. When filter
	// is non-empty, only chunks whose metadata matches every key/value pair
	// are considered, before ranking.
	Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Candidate, error)

	// Delete removes all chunks belonging to the document. Deleting an
	// unknown document is a no-op.
	Delete(ctx context.Context, documentID string) error

	// Stats reports document and chunk counts.
	Stats(ctx context.Context) (Stats, error)

	// Close releases backend resources.
	Close() error
}

// matchesFilter reports whether metadata satisfies every filter pair.
func matchesFilter(metadata, filter map[string]string) bool {
	for k, want := range filter {
		if metadata[k] != want {
			return false
		}
	}
	return true
}
