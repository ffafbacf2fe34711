package loader

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "posting.txt", "Senior Go engineer.\nRemote.\n")

	docs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
	if docs[0].ID != path || docs[0].Text != "Senior Go engineer.\nRemote." {
		t.Errorf("doc = %+v", docs[0])
	}
	if docs[0].Metadata["source"] != path {
		t.Errorf("metadata = %v", docs[0].Metadata)
	}
}

func TestLoad_JSONArray(t *testing.T) {
	path := writeFile(t, t.TempDir(), "postings.json", `[
		{"id": "j1", "text": "Backend engineer.", "metadata": {"company": "acme"}},
		{"id": "j2", "text": "Data analyst."},
		{"id": "skipped", "text": ""}
	]`)

	docs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[0].ID != "j1" || docs[0].Metadata["company"] != "acme" {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if docs[1].Metadata["source"] != path {
		t.Errorf("docs[1].Metadata = %v", docs[1].Metadata)
	}
}

func TestLoad_JSONSingleObject(t *testing.T) {
	path := writeFile(t, t.TempDir(), "posting.json", `{"text": "PM role."}`)

	docs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
	// Missing id falls back to path-derived one.
	if docs[0].ID == "" {
		t.Error("empty document id")
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "posting.docx", "x")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadDir_SkipsUnsupported(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "First posting.")
	writeFile(t, dir, "b.md", "# Second posting")
	writeFile(t, dir, "notes.docx", "ignored")

	docs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len(docs) = %d, want 2", len(docs))
	}
}

func TestLoad_EmptyTextFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.txt", "   \n")
	docs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("len(docs) = %d, want 0", len(docs))
	}
}
