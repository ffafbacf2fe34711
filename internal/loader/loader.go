// Package loader reads job postings from disk into documents ready for
// indexing. Plain text, markdown, JSON, and PDF postings are supported.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hireloop/jobrag/internal/corpus"
)

// jsonDocument is the on-disk JSON shape: a single posting or an array of
// them.
type jsonDocument struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Load reads one file into documents. Text, markdown, and PDF files produce
// a single document whose id is the file path; a JSON file may hold many.
func Load(path string) ([]corpus.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return loadText(path)
	case ".json":
		return loadJSON(path)
	case ".pdf":
		return loadPDF(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

// LoadDir walks dir and loads every supported file, skipping the rest.
func LoadDir(dir string) ([]corpus.Document, error) {
	var docs []corpus.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md", ".json", ".pdf":
		default:
			return nil
		}
		loaded, err := Load(path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func loadText(path string) ([]corpus.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []corpus.Document{{
		ID:       path,
		Text:     text,
		Metadata: map[string]string{"source": path},
	}}, nil
}

func loadJSON(path string) ([]corpus.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var entries []jsonDocument
	if err := json.Unmarshal(data, &entries); err != nil {
		// Not an array; try a single posting.
		var single jsonDocument
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		entries = []jsonDocument{single}
	}

	docs := make([]corpus.Document, 0, len(entries))
	for i, e := range entries {
		if e.Text == "" {
			continue
		}
		id := e.ID
		if id == "" {
			id = fmt.Sprintf("%s#%d", path, i)
		}
		meta := e.Metadata
		if meta == nil {
			meta = make(map[string]string)
		}
		if _, ok := meta["source"]; !ok {
			meta["source"] = path
		}
		docs = append(docs, corpus.Document{ID: id, Text: e.Text, Metadata: meta})
	}
	return docs, nil
}

func loadPDF(path string) ([]corpus.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", path, err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return nil, nil
	}
	return []corpus.Document{{
		ID:       path,
		Text:     text,
		Metadata: map[string]string{"source": path},
	}}, nil
}
