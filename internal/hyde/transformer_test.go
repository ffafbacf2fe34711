package hyde

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hireloop/jobrag/internal/provider"
)

type fakeCompleter struct {
	resp string
	err  error
	got  string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.got = prompt
	return f.resp, f.err
}

func TestTransform(t *testing.T) {
	llm := &fakeCompleter{resp: "  We are hiring a Senior Product Manager with fintech experience.\n"}
	tr := New(llm)

	doc, err := tr.Transform(context.Background(), "product manager roles in fintech")
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if doc != "We are hiring a Senior Product Manager with fintech experience." {
		t.Errorf("doc = %q", doc)
	}
	if !strings.Contains(llm.got, "product manager roles in fintech") {
		t.Errorf("prompt missing query: %q", llm.got)
	}
}

func TestTransform_ProviderErrorPropagates(t *testing.T) {
	tr := New(&fakeCompleter{err: provider.ErrRateLimited})
	_, err := tr.Transform(context.Background(), "query")
	if !errors.Is(err, provider.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestTransform_EmptyResponseIsError(t *testing.T) {
	tr := New(&fakeCompleter{resp: "   \n"})
	if _, err := tr.Transform(context.Background(), "query"); err == nil {
		t.Fatal("expected error for empty response")
	}
}
