package scanner

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome resolves a leading "~" to the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// FileSize returns the size of the regular file at path. ok is false when the
// file cannot be stat'ed or is not a regular file.
func FileSize(path string) (size int64, ok bool) {
	if path == "" {
		return 0, false
	}
	info, err := os.Stat(ExpandHome(path))
	if err != nil || !info.Mode().IsRegular() {
		return 0, false
	}
	return info.Size(), true
}
