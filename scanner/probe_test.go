package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSize(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "data.bin")
	if err := os.WriteFile(path, make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}

	size, ok := FileSize(path)
	if !ok || size != 2048 {
		t.Errorf("FileSize = %d, %v; want 2048, true", size, ok)
	}

	if _, ok := FileSize(filepath.Join(tmpDir, "missing")); ok {
		t.Error("missing file should be unavailable")
	}
	if _, ok := FileSize(tmpDir); ok {
		t.Error("directory should be unavailable")
	}
	if _, ok := FileSize(""); ok {
		t.Error("empty path should be unavailable")
	}
}

func TestFileSizeExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.WriteFile(filepath.Join(home, "notes.md"), []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	size, ok := FileSize("~/notes.md")
	if !ok || size != 3 {
		t.Errorf("FileSize(~/notes.md) = %d, %v; want 3, true", size, ok)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	tests := map[string]string{
		"~":          "/home/tester",
		"~/a/b":      "/home/tester/a/b",
		"/abs/path":  "/abs/path",
		"rel/~/path": "rel/~/path",
		"~other/x":   "~other/x",
	}
	for in, want := range tests {
		if got := ExpandHome(in); got != want {
			t.Errorf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}
