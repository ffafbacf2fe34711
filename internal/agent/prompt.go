package agent

import (
	"fmt"
	"strings"

	"github.com/hireloop/jobrag/internal/retrieval"
)

const defaultMaxContextTokens = 4000

// buildAnswerPrompt assembles the generation prompt from the query and the
// retrieved results, respecting the token budget by dropping lowest-ranked
// results first. Results arrive already ordered best-first.
func buildAnswerPrompt(query string, results []retrieval.Result, maxContextTokens int) string {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}

	var sb strings.Builder
	sb.WriteString("Answer the question using only the job posting excerpts below. " +
		"If the excerpts do not contain the answer, say so.\n\n[Retrieved Context]\n")

	remaining := maxContextTokens - estimateTokens(sb.String())
	for _, res := range results {
		entry := formatResult(res)
		tokens := estimateTokens(entry)
		if tokens > remaining {
			continue
		}
		sb.WriteString(entry)
		remaining -= tokens
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(query)
	return sb.String()
}

// buildUngroundedPrompt is used when the index is empty: the model answers
// from general knowledge and must say it has no postings to cite.
func buildUngroundedPrompt(query string) string {
	return "No job postings are indexed yet, so there is no corpus to cite. " +
		"Answer the question from general knowledge and state clearly that the " +
		"answer is not based on any indexed posting.\n\nQuestion: " + query
}

func buildRewritePrompt(query string, attempted []string) string {
	var sb strings.Builder
	sb.WriteString("The search query below returned mostly irrelevant job postings. " +
		"Rewrite it to surface better matches: use different phrasing and more specific terms. " +
		"Respond with only the rewritten query.\n\nQuery: ")
	sb.WriteString(query)
	if len(attempted) > 0 {
		sb.WriteString("\n\nAlready tried, do not repeat:\n")
		for _, q := range attempted {
			sb.WriteString("- " + q + "\n")
		}
	}
	return sb.String()
}

func formatResult(res retrieval.Result) string {
	score := res.RerankScore
	if score < 0 {
		score = float64(res.VectorScore)
	}
	return fmt.Sprintf("(Score: %.2f, Posting: %s)\n%s\n\n", score, res.Chunk.DocumentID, res.Chunk.Text)
}

// estimateTokens uses the rough 4-chars-per-token heuristic.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
