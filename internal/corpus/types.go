// Package corpus defines the document and chunk model shared by indexing
// and retrieval.
package corpus

// Document is one job posting as delivered by the corpus source. A document
// is immutable once indexed; re-indexing the same ID replaces every chunk
// derived from it.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Chunk is a contiguous span of a document's text, the unit of retrieval.
// Ordinal preserves the original order within the document. Concatenating
// chunk texts in ordinal order, minus the configured overlap, reconstructs
// the source text.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Text       string
	Embedding  []float32
	Metadata   map[string]string
}
