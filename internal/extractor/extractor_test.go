package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export_book.sh")
	if err := os.WriteFile(path, []byte("#!/bin/bash\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExportToMemory(t *testing.T) {
	script := writeScript(t, `echo '{"files":{"002.htm":"<html>two</html>","001.htm":"<html>one</html>"}}'`)
	c := New(script, time.Minute, nil)

	files, err := c.ExportToMemory(context.Background(), 42)
	if err != nil {
		t.Fatalf("ExportToMemory: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0].Name != "001.htm" || files[1].Name != "002.htm" {
		t.Errorf("files not sorted: %q, %q", files[0].Name, files[1].Name)
	}
	if string(files[0].Content) != "<html>one</html>" {
		t.Errorf("content = %q", files[0].Content)
	}
}

func TestExportToMemoryNonZeroExit(t *testing.T) {
	script := writeScript(t, `echo "boom" >&2; exit 2`)
	c := New(script, time.Minute, nil)

	_, err := c.ExportToMemory(context.Background(), 7)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
}

func TestExportToMemoryBadJSON(t *testing.T) {
	script := writeScript(t, `echo 'not json'`)
	c := New(script, time.Minute, nil)

	if _, err := c.ExportToMemory(context.Background(), 7); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestExportToMemoryEmptyFiles(t *testing.T) {
	script := writeScript(t, `echo '{"files":{}}'`)
	c := New(script, time.Minute, nil)

	if _, err := c.ExportToMemory(context.Background(), 7); err == nil {
		t.Fatal("expected error for empty file set")
	}
}
