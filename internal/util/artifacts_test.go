package util

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteJSONAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "analysis.json")
	if err := WriteJSONAtomic(path, map[string]any{"doc_id": "d1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["doc_id"] != "d1" {
		t.Fatalf("unexpected content: %v", got)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "nested", "tmp-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestWriteJSONLinesAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.jsonl")
	rows := []map[string]string{{"id": "a"}, {"id": "b"}}
	if err := WriteJSONLinesAtomic(path, rows); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
}

func TestWriteFileAtomicFailureKeepsOldContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paper.pdf")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("stream cut")
	})
	if err == nil || !strings.Contains(err.Error(), "stream cut") {
		t.Fatalf("expected write error, got %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "old" {
		t.Fatalf("file replaced on failure: %q", b)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "tmp-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}
