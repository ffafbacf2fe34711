// Package chunker splits documents into retrieval-sized passages. The
// primary strategy cuts boundaries where the semantic similarity between
// consecutive sentences drops; when sentence embeddings are unavailable it
// falls back to fixed-size windowing so indexing never loses data.
package chunker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hireloop/jobrag/internal/corpus"
	"github.com/hireloop/jobrag/internal/provider"
)

// Defaults for chunking parameters.
const (
	DefaultChunkSize           = 1000
	DefaultChunkOverlap        = 200
	DefaultMinChunkSize        = 250
	DefaultSimilarityThreshold = 0.7
)

const embedConcurrency = 4

// Config holds chunking parameters. Zero values take the package defaults,
// except ChunkOverlap, where zero disables the overlap and a negative value
// takes the default.
type Config struct {
	ChunkSize           int     // hard cap on chunk length, in bytes
	ChunkOverlap        int     // bytes repeated from the preceding text at each chunk start
	MinChunkSize        int     // segments shorter than this merge into their neighbor
	SimilarityThreshold float64 // consecutive-sentence similarity below this cuts a boundary
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = DefaultChunkOverlap
	}
	if c.MinChunkSize <= 0 {
		c.MinChunkSize = DefaultMinChunkSize
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	// Overlap must leave room for content in every chunk.
	if c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 4
	}
	return c
}

// Chunker splits documents into semantically coherent chunks.
type Chunker struct {
	embedder provider.EmbeddingProvider
	cfg      Config
	logger   *slog.Logger
}

// New creates a Chunker. embedder may be nil, in which case every document
// is chunked with fixed-size windowing.
func New(embedder provider.EmbeddingProvider, cfg Config) *Chunker {
	return &Chunker{
		embedder: embedder,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
	}
}

// Chunk splits the document's text into ordered chunks. Chunk embeddings are
// left empty; the indexing service computes them over the final chunk texts.
// Every input byte appears in at least one chunk.
func (c *Chunker) Chunk(ctx context.Context, doc corpus.Document) ([]corpus.Chunk, error) {
	if doc.Text == "" {
		return nil, nil
	}

	sentences := splitSentences(doc.Text)

	segments, err := c.semanticSegments(ctx, sentences)
	if err != nil {
		// Degraded mode: windowing keeps every byte, just without
		// meaning-boundary cuts.
		c.logger.Warn("sentence embeddings unavailable, falling back to fixed-size chunking",
			"document_id", doc.ID, "error", err)
		return c.windowChunks(doc), nil
	}

	segments = c.mergeShortSegments(segments)
	pieces := c.capSegments(segments)
	return c.assemble(doc, pieces), nil
}

// semanticSegments groups consecutive sentences into topically coherent
// segments by cutting wherever the similarity between neighboring sentence
// embeddings drops below the threshold.
func (c *Chunker) semanticSegments(ctx context.Context, sentences []string) ([][]string, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", provider.ErrProviderUnavailable)
	}
	if len(sentences) == 1 {
		return [][]string{sentences}, nil
	}

	vecs, err := c.embedSentences(ctx, sentences)
	if err != nil {
		return nil, err
	}

	var segments [][]string
	current := []string{sentences[0]}
	for i := 1; i < len(sentences); i++ {
		if cosine(vecs[i-1], vecs[i]) < float32(c.cfg.SimilarityThreshold) {
			segments = append(segments, current)
			current = nil
		}
		current = append(current, sentences[i])
	}
	segments = append(segments, current)
	return segments, nil
}

// embedSentences embeds all sentences concurrently, bounded to avoid
// overwhelming the provider.
func (c *Chunker) embedSentences(ctx context.Context, sentences []string) ([][]float32, error) {
	vecs := make([][]float32, len(sentences))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for i, s := range sentences {
		g.Go(func() error {
			vec, err := c.embedder.Embed(gCtx, strings.TrimSpace(s))
			if err != nil {
				return fmt.Errorf("embedding sentence %d: %w", i, err)
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}

// mergeShortSegments folds segments shorter than MinChunkSize into the next
// segment (or the previous one for a short tail) so retrieval units carry
// enough context to rank well.
func (c *Chunker) mergeShortSegments(segments [][]string) [][]string {
	var merged [][]string
	var pending []string

	for _, seg := range segments {
		pending = append(pending, seg...)
		if segmentLen(pending) >= c.cfg.MinChunkSize {
			merged = append(merged, pending)
			pending = nil
		}
	}
	if len(pending) > 0 {
		if len(merged) > 0 && segmentLen(pending) < c.cfg.MinChunkSize {
			merged[len(merged)-1] = append(merged[len(merged)-1], pending...)
		} else {
			merged = append(merged, pending)
		}
	}
	return merged
}

// capSegments enforces ChunkSize as a hard cap, force-splitting oversized
// segments at sentence boundaries. A single sentence longer than ChunkSize
// stays whole; it is the one permitted overflow.
func (c *Chunker) capSegments(segments [][]string) []string {
	budget := c.cfg.ChunkSize - c.cfg.ChunkOverlap

	var pieces []string
	for _, seg := range segments {
		var sb strings.Builder
		for _, s := range seg {
			if sb.Len() > 0 && sb.Len()+len(s) > budget {
				pieces = append(pieces, sb.String())
				sb.Reset()
			}
			sb.WriteString(s)
		}
		if sb.Len() > 0 {
			pieces = append(pieces, sb.String())
		}
	}
	return pieces
}

// assemble materializes chunks from contiguous content pieces, prefixing each
// chunk after the first with the trailing ChunkOverlap bytes of the text that
// precedes it.
func (c *Chunker) assemble(doc corpus.Document, pieces []string) []corpus.Chunk {
	chunks := make([]corpus.Chunk, 0, len(pieces))
	offset := 0
	for i, piece := range pieces {
		text := piece
		if i > 0 {
			// The prefix shrinks when the piece leaves no room, so only a
			// single sentence longer than ChunkSize can exceed the cap.
			overlap := c.cfg.ChunkOverlap
			if room := c.cfg.ChunkSize - len(piece); room < overlap {
				overlap = max(room, 0)
			}
			prefixStart := offset - overlap
			if prefixStart < 0 {
				prefixStart = 0
			}
			text = doc.Text[prefixStart:offset] + piece
		}
		chunks = append(chunks, corpus.Chunk{
			ID:         chunkID(doc.ID, i, text),
			DocumentID: doc.ID,
			Ordinal:    i,
			Text:       text,
			Metadata:   cloneMetadata(doc.Metadata),
		})
		offset += len(piece)
	}
	return chunks
}

// windowChunks is the fallback strategy: fixed-size windows with overlap and
// no similarity logic.
func (c *Chunker) windowChunks(doc corpus.Document) []corpus.Chunk {
	text := doc.Text
	step := c.cfg.ChunkSize - c.cfg.ChunkOverlap

	var chunks []corpus.Chunk
	ordinal := 0
	for start := 0; start < len(text); start += step {
		end := start + c.cfg.ChunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, corpus.Chunk{
			ID:         chunkID(doc.ID, ordinal, text[start:end]),
			DocumentID: doc.ID,
			Ordinal:    ordinal,
			Text:       text[start:end],
			Metadata:   cloneMetadata(doc.Metadata),
		})
		ordinal++
		if end == len(text) {
			break
		}
	}
	return chunks
}

// chunkID derives a stable chunk identity from the document, position, and
// content, so re-indexing an unchanged document produces a byte-identical
// chunk set.
func chunkID(docID string, ordinal int, text string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s/%d/%s", docID, ordinal, text)).String()
}

func segmentLen(sentences []string) int {
	n := 0
	for _, s := range sentences {
		n += len(s)
	}
	return n
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// splitSentences splits text into sentence substrings that tile the input
// exactly: concatenating the result reproduces text byte for byte. A sentence
// ends after '.', '!', or '?' (plus any closing quotes) followed by
// whitespace, or at a blank line; trailing whitespace stays attached to the
// sentence it follows.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	i := 0
	for i < len(runes) {
		r := runes[i]
		if r == '.' || r == '!' || r == '?' {
			j := i + 1
			for j < len(runes) && (runes[j] == '"' || runes[j] == '\'' || runes[j] == ')' || runes[j] == '.') {
				j++
			}
			if j >= len(runes) || unicode.IsSpace(runes[j]) {
				// Consume the whitespace run so it stays with this sentence.
				for j < len(runes) && unicode.IsSpace(runes[j]) && runes[j] != '\n' {
					j++
				}
				if j < len(runes) && runes[j] == '\n' {
					j++
				}
				sentences = append(sentences, string(runes[start:j]))
				start = j
				i = j
				continue
			}
		}
		if r == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			// Paragraph break ends a sentence even without punctuation.
			j := i + 2
			sentences = append(sentences, string(runes[start:j]))
			start = j
			i = j
			continue
		}
		i++
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

// cosine computes cosine similarity between two vectors.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, aSq, bSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aSq += float64(a[i]) * float64(a[i])
		bSq += float64(b[i]) * float64(b[i])
	}
	if aSq == 0 || bSq == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(aSq) * math.Sqrt(bSq)))
}
