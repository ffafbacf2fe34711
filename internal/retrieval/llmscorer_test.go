package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/hireloop/jobrag/internal/provider"
)

type fakeCompleter struct {
	resp string
	err  error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.resp, f.err
}

func TestLLMScorer_Score(t *testing.T) {
	tests := []struct {
		name string
		resp string
		want float64
	}{
		{"bare json", `{"score": 0.8}`, 0.8},
		{"fenced json", "```json\n{\"score\": 0.35}\n```", 0.35},
		{"conversational filler", `Sure! Here is the rating: {"score": 1.0}`, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewLLMScorer(&fakeCompleter{resp: tt.resp})
			got, err := s.Score(context.Background(), "q", "p")
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if got != tt.want {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLLMScorer_UnparseableResponse(t *testing.T) {
	s := NewLLMScorer(&fakeCompleter{resp: "I cannot rate this."})
	if _, err := s.Score(context.Background(), "q", "p"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLLMScorer_ProviderErrorPropagates(t *testing.T) {
	s := NewLLMScorer(&fakeCompleter{err: provider.ErrProviderUnavailable})
	_, err := s.Score(context.Background(), "q", "p")
	if !errors.Is(err, provider.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}
