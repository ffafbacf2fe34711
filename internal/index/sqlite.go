package index

import (
	"container/heap"
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hireloop/jobrag/internal/corpus"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Compile-time check that SQLiteIndex implements VectorIndex.
var _ VectorIndex = (*SQLiteIndex)(nil)

// SQLiteIndex provides durable vector storage with brute-force cosine
// similarity search. This is the default backend; brute-force scanning is
// adequate well beyond the size of a scraped job-posting corpus.
type SQLiteIndex struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the index database in dataDir and applies
// pending migrations. Pass ":memory:" as dataDir for an in-memory database
// (used by tests).
func OpenSQLite(dataDir string) (*SQLiteIndex, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "index.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrStoreUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging database: %v", ErrStoreUnavailable, err)
	}

	// Single connection serializes writers, which also makes same-document
	// upsert/delete ordering last-writer-wins without extra locking.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: setting busy timeout: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: setting journal mode: %v", ErrStoreUnavailable, err)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return idx, nil
}

// Close closes the underlying database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migration files in filename order.
func (s *SQLiteIndex) migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("applying migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Upsert inserts chunks, replacing all stored chunks of each document in the
// batch inside a single transaction.
func (s *SQLiteIndex) Upsert(ctx context.Context, chunks []corpus.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning upsert transaction: %v", ErrStoreUnavailable, err)
	}

	// Replace semantics: drop every prior chunk of the documents in this batch.
	seen := make(map[string]bool)
	for _, c := range chunks {
		if seen[c.DocumentID] {
			continue
		}
		seen[c.DocumentID] = true
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", c.DocumentID); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: clearing document %s: %v", ErrStoreUnavailable, c.DocumentID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, ordinal, text, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: preparing insert statement: %v", ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encoding metadata for chunk %s: %w", c.ID, err)
		}
		blob := encodeFloat32s(c.Embedding)
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Ordinal, c.Text, blob, string(meta)); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: inserting chunk %s: %v", ErrStoreUnavailable, c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing upsert: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// idScore holds only the ID and score during the scan phase of Search.
// Full chunk rows are fetched only for top-K winners.
type idScore struct {
	ID    string
	Score float32
}

// Search performs brute-force cosine similarity search over all vectors,
// returning the top-K most similar chunks. A non-empty filter restricts the
// candidate set to chunks whose metadata matches every key/value pair.
func (s *SQLiteIndex) Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Candidate, error) {
	if k <= 0 {
		return nil, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	// Phase 1: scan id + embedding (+ metadata when filtering) to find top-K.
	cols := "id, embedding"
	if len(filter) > 0 {
		cols += ", metadata"
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+cols+" FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("%w: querying vectors: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		var metaJSON string

		if len(filter) > 0 {
			err = rows.Scan(&id, &blob, &metaJSON)
		} else {
			err = rows.Scan(&id, &blob)
		}
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		if len(filter) > 0 {
			var meta map[string]string
			if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
				return nil, fmt.Errorf("decoding metadata for %s: %w", id, err)
			}
			if !matchesFilter(meta, filter) {
				continue
			}
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := cosine(vector, buf, queryNorm)
		if h.Len() < k {
			heap.Push(h, idScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", ErrStoreUnavailable, err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full chunk rows only for the winners.
	topIDs := make([]string, h.Len())
	scores := make(map[string]float32, h.Len())
	for i := len(topIDs) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idScore)
		topIDs[i] = item.ID
		scores[item.ID] = item.Score
	}

	queryArgs := make([]interface{}, len(topIDs))
	for i, id := range topIDs {
		queryArgs[i] = id
	}
	fullQuery := `SELECT id, document_id, ordinal, text, embedding, metadata
		FROM chunks WHERE id IN (?` + strings.Repeat(",?", len(topIDs)-1) + `)`

	fullRows, err := s.db.QueryContext(ctx, fullQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching top-K chunks: %v", ErrStoreUnavailable, err)
	}
	defer fullRows.Close()

	var results []Candidate
	for fullRows.Next() {
		c, err := scanChunk(fullRows)
		if err != nil {
			return nil, err
		}
		results = append(results, Candidate{Chunk: c, VectorScore: scores[c.ID]})
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating full chunks: %v", ErrStoreUnavailable, err)
	}

	// Sort by score descending (IN query doesn't preserve order).
	sort.Slice(results, func(i, j int) bool {
		return results[i].VectorScore > results[j].VectorScore
	})
	return results, nil
}

func scanChunk(rows *sql.Rows) (corpus.Chunk, error) {
	var c corpus.Chunk
	var blob []byte
	var metaJSON string
	if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Text, &blob, &metaJSON); err != nil {
		return corpus.Chunk{}, fmt.Errorf("scanning chunk: %w", err)
	}
	embedding, err := decodeFloat32s(blob)
	if err != nil {
		return corpus.Chunk{}, fmt.Errorf("decoding embedding for %s: %w", c.ID, err)
	}
	c.Embedding = embedding
	if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
		return corpus.Chunk{}, fmt.Errorf("decoding metadata for %s: %w", c.ID, err)
	}
	return c, nil
}

// Delete removes all chunks belonging to the document. Unknown documents are
// a no-op.
func (s *SQLiteIndex) Delete(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("%w: deleting document %s: %v", ErrStoreUnavailable, documentID, err)
	}
	return nil
}

// Stats reports document and chunk counts.
func (s *SQLiteIndex) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT document_id) FROM chunks").Scan(&st.ChunkCount, &st.DocumentCount)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: counting chunks: %v", ErrStoreUnavailable, err)
	}
	return st, nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// idScoreHeap is a min-heap of idScore ordered by Score. Used during the
// scan phase of Search to track top-K candidates by ID only.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int            { return len(h) }
func (h idScoreHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x interface{}) { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
