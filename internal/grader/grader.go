// Package grader judges whether retrieved chunks are actually relevant to a
// query. The agent uses the resulting ratio to decide between answering and
// rewriting the query.
package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hireloop/jobrag/internal/corpus"
	"github.com/hireloop/jobrag/internal/provider"
)

const gradeConcurrency = 3

// Report holds per-chunk verdicts and the overall relevance ratio. Ratio is
// relevant/graded; chunks whose grading call failed are excluded from both
// counts.
type Report struct {
	Relevant []bool
	Ratio    float64
}

// Grader asks a chat model for a binary relevance verdict per chunk.
type Grader struct {
	llm    provider.Completer
	logger *slog.Logger
}

// New creates a Grader.
func New(llm provider.Completer) *Grader {
	return &Grader{llm: llm, logger: slog.Default()}
}

// Grade judges each chunk against the query. Individual grading failures are
// tolerated and logged; Grade returns an error only when no chunk could be
// graded at all, so the caller can decide how to degrade.
func (g *Grader) Grade(ctx context.Context, query string, chunks []corpus.Chunk) (Report, error) {
	if len(chunks) == 0 {
		return Report{}, nil
	}

	verdicts := make([]bool, len(chunks))
	failed := make([]bool, len(chunks))
	sem := make(chan struct{}, gradeConcurrency)

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk corpus.Chunk) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				failed[i] = true
				return
			}
			defer func() { <-sem }()

			relevant, err := g.gradeOne(ctx, query, chunk.Text)
			if err != nil {
				g.logger.Warn("grading failed for chunk", "chunk_id", chunk.ID, "error", err)
				failed[i] = true
				return
			}
			verdicts[i] = relevant
		}(i, chunk)
	}
	wg.Wait()

	graded, relevant := 0, 0
	for i := range chunks {
		if failed[i] {
			continue
		}
		graded++
		if verdicts[i] {
			relevant++
		}
	}
	if graded == 0 {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		return Report{}, fmt.Errorf("grading: no chunk could be graded")
	}

	return Report{
		Relevant: verdicts,
		Ratio:    float64(relevant) / float64(graded),
	}, nil
}

func (g *Grader) gradeOne(ctx context.Context, query, text string) (bool, error) {
	prompt := "Does the following job posting excerpt contain information relevant to the query?\n" +
		"Query: " + query + "\n" +
		"Excerpt: " + text + "\n" +
		`Respond with only a JSON object: {"relevant": true} or {"relevant": false}`

	resp, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		return false, err
	}
	return parseVerdict(resp)
}

// parseVerdict extracts a boolean verdict. It prefers the JSON object form
// and falls back to scanning for a bare yes/no, which small models sometimes
// emit despite the instructions.
func parseVerdict(resp string) (bool, error) {
	s := strings.TrimSpace(resp)

	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start != -1 && end > start {
		var obj struct {
			Relevant bool `json:"relevant"`
		}
		if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err == nil {
			return obj.Relevant, nil
		}
	}

	switch lower := strings.ToLower(s); {
	case strings.HasPrefix(lower, "yes") || strings.HasPrefix(lower, "true"):
		return true, nil
	case strings.HasPrefix(lower, "no") || strings.HasPrefix(lower, "false"):
		return false, nil
	}
	return false, fmt.Errorf("no verdict in response %q", resp)
}
