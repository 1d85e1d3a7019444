package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteOutputCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.json")
	if err := WriteOutput(path, "{\"k\": \"\\u00e9\"}", nil); err != nil {
		t.Fatalf("write output: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "{\"k\": \"\\u00e9\"}" {
		t.Fatalf("content not written verbatim: %q", data)
	}
}

func TestWriteOutputStdout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOutput("-", "[1]", &buf); err != nil {
		t.Fatalf("write output: %v", err)
	}
	if buf.String() != "[1]" {
		t.Fatalf("unexpected stdout %q", buf.String())
	}
}
