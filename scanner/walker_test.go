package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"ctxguard/budget"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func scannedPaths(files []FileInfo) []string {
	var out []string
	for _, f := range files {
		out = append(out, filepath.ToSlash(f.Path))
	}
	sort.Strings(out)
	return out
}

func TestIgnoredDirs(t *testing.T) {
	for _, dir := range []string{".git", "node_modules", "vendor", "__pycache__", ".venv", "target"} {
		if !IgnoredDirs[dir] {
			t.Errorf("Expected %q to be in IgnoredDirs", dir)
		}
	}
}

func TestScanFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"main.go":               "package main",
		"README.md":             "hello",
		"src/util/helper.go":    "package util",
		"node_modules/x/y.js":   "ignored",
		"docs/manual.pdf":       "%PDF",
		"logs/debug.log":        "ignored by gitignore",
		".gitignore":            "logs/\n",
		"src/.gitignore":        "*.gen.go\n",
		"src/util/types.gen.go": "generated",
	})

	files, err := ScanFiles(tmpDir, NewGitIgnoreCache(tmpDir), NewSkipList(DefaultSkipPatterns...))
	if err != nil {
		t.Fatalf("ScanFiles failed: %v", err)
	}

	got := scannedPaths(files)
	want := []string{".gitignore", "README.md", "main.go", "src/.gitignore", "src/util/helper.go"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("file %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScanFilesRecordsSizes(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"a.txt": "12345"})

	files, err := ScanFiles(tmpDir, nil, nil)
	if err != nil {
		t.Fatalf("ScanFiles failed: %v", err)
	}
	if len(files) != 1 || files[0].Size != 5 || files[0].Ext != ".txt" {
		t.Errorf("unexpected result: %+v", files)
	}
}

func TestEstimate(t *testing.T) {
	tmpDir := t.TempDir()
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		files[filepath.Join("pkg", name+".go")] = "0123456789"
	}
	files["notes.md"] = "1234"
	writeTree(t, tmpDir, files)

	state, err := Estimate(tmpDir, nil)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if state.ReadCount != 7 || state.TotalBytes != 64 {
		t.Errorf("got %d files / %d bytes, want 7 / 64", state.ReadCount, state.TotalBytes)
	}
	if err := state.Validate(); err != nil {
		t.Errorf("estimate should satisfy invariants: %v", err)
	}
	if got := budget.Advise(state).Strategy; got != budget.StrategyPartitionByDirectory {
		t.Errorf("Advise = %q, want partition-by-directory", got)
	}
}

func TestEstimateMissingRoot(t *testing.T) {
	if _, err := Estimate(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("expected error for missing root")
	}
}
