// Package agent runs the self-correcting query loop: retrieve, grade the
// results, and either answer or rewrite the query and try again. The loop is
// an explicit state machine with a hard iteration cap, so it always
// terminates.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/hireloop/jobrag/internal/corpus"
	"github.com/hireloop/jobrag/internal/grader"
	"github.com/hireloop/jobrag/internal/retrieval"
)

// phase names the states of the query loop.
type phase string

const (
	phaseStart     phase = "start"
	phaseTransform phase = "transform"
	phaseRetrieve  phase = "retrieve"
	phaseGrade     phase = "grade"
	phaseRewrite   phase = "rewrite"
	phaseGenerate  phase = "generate"
	phaseDone      phase = "done"
)

const (
	// DefaultMaxIterations caps retrieve-grade-rewrite rounds.
	DefaultMaxIterations = 3
	// DefaultMinRelevance is the ratio of relevant chunks needed to answer
	// without rewriting.
	DefaultMinRelevance = 0.7
)

// Retriever is the retrieval stage the agent drives.
type Retriever interface {
	Retrieve(ctx context.Context, query string, filter map[string]string) ([]retrieval.Result, error)
}

// Transformer rewrites a query into a hypothetical document before search.
type Transformer interface {
	Transform(ctx context.Context, query string) (string, error)
}

// RelevanceGrader judges retrieved chunks against the query.
type RelevanceGrader interface {
	Grade(ctx context.Context, query string, chunks []corpus.Chunk) (grader.Report, error)
}

// Completer generates the final answer and query rewrites.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config tunes the loop.
type Config struct {
	MaxIterations    int
	MinRelevance     float64
	MaxContextTokens int
	HyDE             bool
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MinRelevance <= 0 {
		c.MinRelevance = DefaultMinRelevance
	}
	return c
}

// Outcome is the result of one agent run.
type Outcome struct {
	Answer         string
	Results        []retrieval.Result
	RelevanceRatio float64
	Iterations     int
	// Grounded is false when the index was empty and the answer cites no
	// postings.
	Grounded bool
}

// Agent is the self-correcting query loop. transformer may be nil to disable
// the hypothetical-document rewrite.
type Agent struct {
	retriever   Retriever
	transformer Transformer
	grader      RelevanceGrader
	llm         Completer
	cfg         Config
	logger      *slog.Logger
}

// New creates an Agent.
func New(r Retriever, t Transformer, g RelevanceGrader, llm Completer, cfg Config) *Agent {
	return &Agent{
		retriever:   r,
		transformer: t,
		grader:      g,
		llm:         llm,
		cfg:         cfg.withDefaults(),
		logger:      slog.Default(),
	}
}

// Run answers the query. It only returns an error for fatal conditions: a
// cancelled context, an unavailable vector store, or a final generation
// failure. Everything else degrades inside the loop.
func (a *Agent) Run(ctx context.Context, query string, filter map[string]string) (Outcome, error) {
	var (
		out          Outcome
		state        = phaseStart
		currentQuery = query
		searchText   string
		attempted    []string
	)

	for state != phaseDone {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		switch state {
		case phaseStart:
			out.Iterations = 1
			state = phaseTransform

		case phaseTransform:
			searchText = currentQuery
			if a.cfg.HyDE && a.transformer != nil {
				doc, err := a.transformer.Transform(ctx, currentQuery)
				if err != nil {
					a.logger.Warn("query transform failed, searching with raw query", "error", err)
				} else {
					searchText = doc
				}
			}
			state = phaseRetrieve

		case phaseRetrieve:
			results, err := a.retriever.Retrieve(ctx, searchText, filter)
			if err != nil {
				return out, fmt.Errorf("retrieval (iteration %d): %w", out.Iterations, err)
			}
			out.Results = results
			if len(results) == 0 {
				// Empty corpus: answer ungrounded rather than fail.
				state = phaseGenerate
			} else {
				state = phaseGrade
			}

		case phaseGrade:
			if a.grader == nil {
				state = phaseGenerate
				break
			}
			report, err := a.grader.Grade(ctx, currentQuery, resultChunks(out.Results))
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				a.logger.Warn("grading unavailable, answering with ungraded results", "error", err)
				state = phaseGenerate
				break
			}
			out.RelevanceRatio = report.Ratio
			switch {
			case report.Ratio >= a.cfg.MinRelevance:
				state = phaseGenerate
			case out.Iterations >= a.cfg.MaxIterations:
				a.logger.Info("iteration cap reached, answering with best results",
					"iterations", out.Iterations, "ratio", report.Ratio)
				state = phaseGenerate
			default:
				state = phaseRewrite
			}

		case phaseRewrite:
			attempted = append(attempted, currentQuery)
			rewritten, err := a.rewrite(ctx, currentQuery, attempted)
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				// Can't make progress on the query; answer with what we have.
				a.logger.Warn("query rewrite failed, answering with current results", "error", err)
				state = phaseGenerate
				break
			}
			a.logger.Debug("query rewritten", "from", currentQuery, "to", rewritten)
			currentQuery = rewritten
			out.Iterations++
			state = phaseTransform

		case phaseGenerate:
			answer, grounded, err := a.generate(ctx, query, out.Results)
			if err != nil {
				return out, fmt.Errorf("answer generation: %w", err)
			}
			out.Answer = answer
			out.Grounded = grounded
			state = phaseDone
		}
	}
	return out, nil
}

// rewrite asks the model for a changed query. A rewrite identical to one
// already attempted is retried once with the attempted list in the prompt;
// if the model still repeats itself, rewrite fails and the caller answers
// with the current results instead of looping.
func (a *Agent) rewrite(ctx context.Context, query string, attempted []string) (string, error) {
	for try := 0; try < 2; try++ {
		resp, err := a.llm.Complete(ctx, buildRewritePrompt(query, attempted))
		if err != nil {
			return "", err
		}
		rewritten := strings.Trim(strings.TrimSpace(resp), `"`)
		if rewritten != "" && !slices.Contains(attempted, rewritten) {
			return rewritten, nil
		}
	}
	return "", fmt.Errorf("model repeated an already-attempted query")
}

// generate produces the final answer from the original query, not the
// rewritten one: rewrites steer retrieval, the user still asked the original
// question.
func (a *Agent) generate(ctx context.Context, query string, results []retrieval.Result) (string, bool, error) {
	var prompt string
	grounded := len(results) > 0
	if grounded {
		prompt = buildAnswerPrompt(query, results, a.cfg.MaxContextTokens)
	} else {
		prompt = buildUngroundedPrompt(query)
	}
	answer, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(answer), grounded, nil
}

func resultChunks(results []retrieval.Result) []corpus.Chunk {
	chunks := make([]corpus.Chunk, len(results))
	for i, res := range results {
		chunks[i] = res.Chunk
	}
	return chunks
}
