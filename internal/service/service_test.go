package service

import (
	"context"
	"testing"

	"github.com/hireloop/jobrag/internal/agent"
	"github.com/hireloop/jobrag/internal/corpus"
	"github.com/hireloop/jobrag/internal/index"
	"github.com/hireloop/jobrag/internal/indexer"
	"github.com/hireloop/jobrag/internal/retrieval"
)

type stubIndexer struct{ report indexer.Report }

func (s *stubIndexer) Index(ctx context.Context, docs []corpus.Document) (indexer.Report, error) {
	return s.report, nil
}

type stubQuerier struct {
	out  agent.Outcome
	seen string
}

func (s *stubQuerier) Run(ctx context.Context, query string, filter map[string]string) (agent.Outcome, error) {
	s.seen = query
	return s.out, nil
}

type stubSearcher struct{ results []retrieval.Result }

func (s *stubSearcher) Similar(ctx context.Context, text string, k int, filter map[string]string) ([]retrieval.Result, error) {
	return s.results, nil
}

type stubStatsIndex struct {
	index.VectorIndex
	stats index.Stats
}

func (s *stubStatsIndex) Stats(ctx context.Context) (index.Stats, error) {
	return s.stats, nil
}

func TestQuery_RejectsEmpty(t *testing.T) {
	svc := New(&stubIndexer{}, &stubQuerier{}, &stubSearcher{}, &stubStatsIndex{})
	if _, err := svc.Query(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestQuery_Delegates(t *testing.T) {
	q := &stubQuerier{out: agent.Outcome{Answer: "hi", Iterations: 1}}
	svc := New(&stubIndexer{}, q, &stubSearcher{}, &stubStatsIndex{})

	out, err := svc.Query(context.Background(), "question", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if q.seen != "question" || out.Answer != "hi" {
		t.Errorf("seen = %q, out = %+v", q.seen, out)
	}
}

func TestRetrieveSimilar_RejectsEmpty(t *testing.T) {
	svc := New(&stubIndexer{}, &stubQuerier{}, &stubSearcher{}, &stubStatsIndex{})
	if _, err := svc.RetrieveSimilar(context.Background(), "", 5, nil); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestStats(t *testing.T) {
	svc := New(&stubIndexer{}, &stubQuerier{}, &stubSearcher{},
		&stubStatsIndex{stats: index.Stats{DocumentCount: 2, ChunkCount: 9}})

	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.DocumentCount != 2 || st.ChunkCount != 9 {
		t.Errorf("stats = %+v", st)
	}
}
