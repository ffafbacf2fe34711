// Package hyde implements Hypothetical Document Embeddings: before vector
// search, the query is rewritten into the document that would ideally answer
// it, which embeds closer to real corpus chunks than the question itself.
package hyde

import (
	"context"
	"fmt"
	"strings"

	"github.com/hireloop/jobrag/internal/provider"
)

// Transformer rewrites queries into hypothetical answer documents.
type Transformer struct {
	llm provider.Completer
}

// New creates a Transformer backed by the given chat model.
func New(llm provider.Completer) *Transformer {
	return &Transformer{llm: llm}
}

// Transform returns a hypothetical document for the query. Callers should
// fall back to searching with the raw query when this fails; the rewrite is
// an accuracy boost, not a requirement.
func (t *Transformer) Transform(ctx context.Context, query string) (string, error) {
	prompt := buildPrompt(query)

	doc, err := t.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("hypothetical document generation: %w", err)
	}
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return "", fmt.Errorf("hypothetical document generation: empty response")
	}
	return doc, nil
}

func buildPrompt(query string) string {
	return "Write a short job posting excerpt that would perfectly answer the question below. " +
		"Write it as the posting itself, in plain prose, with no preamble and no commentary.\n\n" +
		"Question: " + query
}
