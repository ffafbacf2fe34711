package main

import (
	"strings"
	"testing"

	"github.com/hireloop/jobrag/internal/agent"
	"github.com/hireloop/jobrag/internal/corpus"
	"github.com/hireloop/jobrag/internal/retrieval"
)

func TestParseFilter(t *testing.T) {
	filter, err := parseFilter([]string{"company=acme", "location=remote"})
	if err != nil {
		t.Fatalf("parseFilter: %v", err)
	}
	if filter["company"] != "acme" || filter["location"] != "remote" {
		t.Errorf("filter = %v", filter)
	}
}

func TestParseFilter_Empty(t *testing.T) {
	filter, err := parseFilter(nil)
	if err != nil {
		t.Fatalf("parseFilter: %v", err)
	}
	if filter != nil {
		t.Errorf("filter = %v, want nil", filter)
	}
}

func TestParseFilter_Invalid(t *testing.T) {
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseFilter([]string{bad}); err == nil {
			t.Errorf("parseFilter(%q): expected error", bad)
		}
	}
}

func TestSourceList_DeduplicatesDocuments(t *testing.T) {
	out := agent.Outcome{Results: []retrieval.Result{
		{Chunk: corpus.Chunk{DocumentID: "a"}},
		{Chunk: corpus.Chunk{DocumentID: "b"}},
		{Chunk: corpus.Chunk{DocumentID: "a"}},
	}}
	if got := sourceList(out); got != "a, b" {
		t.Errorf("sourceList = %q, want %q", got, "a, b")
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "ok"); strings.Contains(got, "\033") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", got)
	}

	noColor = false
	if got := colorize(colorGreen, "ok"); !strings.Contains(got, "\033") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", got)
	}
}
