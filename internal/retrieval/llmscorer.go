package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hireloop/jobrag/internal/provider"
)

// LLMScorer scores (query, passage) relevance with a chat model. It backs up
// the cross-encoder when that service is down; slower and noisier, but it
// keeps the rerank stage alive.
type LLMScorer struct {
	llm provider.Completer
}

// NewLLMScorer wraps a Completer as a PairScorer.
func NewLLMScorer(llm provider.Completer) *LLMScorer {
	return &LLMScorer{llm: llm}
}

// Score asks the model to rate relevance on a 0.0-1.0 scale.
func (s *LLMScorer) Score(ctx context.Context, query, passage string) (float64, error) {
	prompt := "Rate the relevance of the following job posting excerpt to the query on a scale of 0.0 to 1.0.\n" +
		"Query: " + query + "\n" +
		"Excerpt: " + passage + "\n" +
		`Respond with only a JSON object: {"score": <float>}`

	resp, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return 0, err
	}
	return parseScore(resp)
}

// parseScore robustly extracts a relevance score from an LLM response. Small
// models frequently wrap JSON in markdown code fences or prepend
// conversational filler, so the parser strips fences and extracts the
// outermost brace pair before unmarshalling.
func parseScore(resp string) (float64, error) {
	s := strings.TrimSpace(resp)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		if strings.HasPrefix(s, "json") {
			s = s[4:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return 0, fmt.Errorf("no JSON object in response")
	}

	var obj struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		return 0, fmt.Errorf("unmarshal score: %w", err)
	}
	return obj.Score, nil
}
