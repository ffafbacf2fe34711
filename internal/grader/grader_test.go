package grader

import (
	"context"
	"strings"
	"testing"

	"github.com/hireloop/jobrag/internal/corpus"
	"github.com/hireloop/jobrag/internal/provider"
)

type verdictCompleter struct {
	// respond maps an excerpt marker to the canned response.
	respond func(prompt string) (string, error)
}

func (v *verdictCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return v.respond(prompt)
}

func chunksOf(texts ...string) []corpus.Chunk {
	chunks := make([]corpus.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = corpus.Chunk{ID: t, Text: t}
	}
	return chunks
}

func TestGrade_Ratio(t *testing.T) {
	// Key on the excerpt line; the query itself mentions fintech and is
	// embedded in every prompt.
	llm := &verdictCompleter{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Excerpt: fintech") {
			return `{"relevant": true}`, nil
		}
		return `{"relevant": false}`, nil
	}}
	g := New(llm)

	report, err := g.Grade(context.Background(), "fintech PM roles",
		chunksOf("fintech posting a", "fintech posting b", "bakery posting", "warehouse posting"))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if report.Ratio != 0.5 {
		t.Errorf("Ratio = %v, want 0.5", report.Ratio)
	}
	want := []bool{true, true, false, false}
	for i, v := range want {
		if report.Relevant[i] != v {
			t.Errorf("Relevant[%d] = %v, want %v", i, report.Relevant[i], v)
		}
	}
}

func TestGrade_ToleratesPerChunkFailures(t *testing.T) {
	llm := &verdictCompleter{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "broken") {
			return "", provider.ErrRateLimited
		}
		return `{"relevant": true}`, nil
	}}
	g := New(llm)

	report, err := g.Grade(context.Background(), "q", chunksOf("good", "broken", "good 2"))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	// Failed chunk drops out of the denominator.
	if report.Ratio != 1.0 {
		t.Errorf("Ratio = %v, want 1.0", report.Ratio)
	}
}

func TestGrade_AllFailuresIsError(t *testing.T) {
	llm := &verdictCompleter{respond: func(string) (string, error) {
		return "", provider.ErrProviderUnavailable
	}}
	g := New(llm)

	if _, err := g.Grade(context.Background(), "q", chunksOf("a", "b")); err == nil {
		t.Fatal("expected error when nothing could be graded")
	}
}

func TestGrade_EmptyInput(t *testing.T) {
	g := New(&verdictCompleter{respond: func(string) (string, error) {
		t.Fatal("completer should not be called")
		return "", nil
	}})
	report, err := g.Grade(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if report.Ratio != 0 || report.Relevant != nil {
		t.Errorf("report = %+v, want zero value", report)
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		resp    string
		want    bool
		wantErr bool
	}{
		{`{"relevant": true}`, true, false},
		{`{"relevant": false}`, false, false},
		{"```json\n{\"relevant\": true}\n```", true, false},
		{"Yes, this is relevant.", true, false},
		{"No.", false, false},
		{"perhaps", false, true},
	}
	for _, tt := range tests {
		got, err := parseVerdict(tt.resp)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseVerdict(%q): expected error", tt.resp)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseVerdict(%q): %v", tt.resp, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseVerdict(%q) = %v, want %v", tt.resp, got, tt.want)
		}
	}
}
