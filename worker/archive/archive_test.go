package archive

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func readZip(t *testing.T, data []byte) map[string]string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Failed to open zip: %v", err)
	}

	entries := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open entry %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("Failed to read entry %s: %v", f.Name, err)
		}
		entries[f.Name] = string(content)
	}
	return entries
}

func TestExtract_NestedDirectories(t *testing.T) {
	data := buildZip(t, map[string]string{
		"top.jpg":           "a",
		"album/":            "",
		"album/inner/b.png": "b",
	})

	dst := t.TempDir()
	n, err := Extract(bytes.NewReader(data), int64(len(data)), dst)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 files, got %d", n)
	}

	content, err := os.ReadFile(filepath.Join(dst, "album", "inner", "b.png"))
	if err != nil {
		t.Fatalf("Expected nested file: %v", err)
	}
	if string(content) != "b" {
		t.Errorf("Unexpected content %q", content)
	}
}

func TestExtract_RejectsTraversal(t *testing.T) {
	data := buildZip(t, map[string]string{"../evil.jpg": "x"})

	dst := t.TempDir()
	_, err := Extract(bytes.NewReader(data), int64(len(data)), dst)
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("Expected ErrUnsafePath, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(dst), "evil.jpg")); !os.IsNotExist(err) {
		t.Error("Traversal entry was written outside destination")
	}
}

func TestExtract_InvalidArchive(t *testing.T) {
	data := []byte("definitely not a zip")
	_, err := Extract(bytes.NewReader(data), int64(len(data)), t.TempDir())
	if !errors.Is(err, ErrInvalidArchive) {
		t.Fatalf("Expected ErrInvalidArchive, got %v", err)
	}
}

func TestPack_PreservesRelativePaths(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"a.jpg":             "one",
		"dir/b.png":         "two",
		"dir/deeper/c.jpeg": "three",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}

	data, err := Pack(root)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	entries := readZip(t, data)
	if len(entries) != len(files) {
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		t.Fatalf("Expected %d entries, got %v", len(files), names)
	}
	for name, content := range files {
		if entries[name] != content {
			t.Errorf("Entry %s: expected %q, got %q", name, content, entries[name])
		}
	}
}

func TestPack_MissingRoot(t *testing.T) {
	_, err := Pack(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrPackaging) {
		t.Fatalf("Expected ErrPackaging, got %v", err)
	}
}

func TestPack_RoundTripThroughExtract(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "x", "y"), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "x", "y", "z.png"), []byte("zzz"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	data, err := Pack(src)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	dst := t.TempDir()
	if _, err := Extract(bytes.NewReader(data), int64(len(data)), dst); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(dst, "x", "y", "z.png"))
	if err != nil || string(content) != "zzz" {
		t.Errorf("Round trip mismatch: %q, %v", content, err)
	}
}
