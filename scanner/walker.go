package scanner

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"ctxguard/budget"
)

// FileInfo is one file found by ScanFiles.
type FileInfo struct {
	Path string `json:"path"` // relative to the scan root
	Size int64  `json:"size"`
	Ext  string `json:"ext,omitempty"`
}

// GitIgnoreCache holds the .gitignore files of a tree, loaded lazily as
// directories are visited.
type GitIgnoreCache struct {
	root    string
	cache   map[string]*ignore.GitIgnore // abs dir -> compiled rules, only dirs that have one
	visited map[string]struct{}
}

// NewGitIgnoreCache creates a cache rooted at root.
func NewGitIgnoreCache(root string) *GitIgnoreCache {
	absRoot, _ := filepath.Abs(root)
	c := &GitIgnoreCache{
		root:    absRoot,
		cache:   make(map[string]*ignore.GitIgnore),
		visited: make(map[string]struct{}),
	}
	c.load(absRoot)
	return c
}

func (c *GitIgnoreCache) load(dir string) {
	if _, seen := c.visited[dir]; seen {
		return
	}
	c.visited[dir] = struct{}{}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore")); err == nil {
		c.cache[dir] = gi
	}
}

// ShouldIgnore checks absPath against every .gitignore between its parent
// and the cache root.
func (c *GitIgnoreCache) ShouldIgnore(absPath string) bool {
	if len(c.cache) == 0 {
		return false
	}
	dir := filepath.Dir(absPath)
	for {
		if gi, ok := c.cache[dir]; ok {
			rel, _ := filepath.Rel(dir, absPath)
			if gi.MatchesPath(rel) {
				return true
			}
		}
		if dir == c.root {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

// IgnoredDirs are never descended into.
var IgnoredDirs = map[string]bool{
	".git":          true,
	"node_modules":  true,
	"vendor":        true,
	"__pycache__":   true,
	".venv":         true,
	"venv":          true,
	".idea":         true,
	".vscode":       true,
	".pytest_cache": true,
	".mypy_cache":   true,
	".tox":          true,
	"dist":          true,
	"build":         true,
	".next":         true,
	"target":        true,
	".gradle":       true,
}

// ScanFiles walks root and returns every regular file that is not ignored by
// IgnoredDirs, a .gitignore, or skip.
func ScanFiles(root string, cache *GitIgnoreCache, skip *SkipList) ([]FileInfo, error) {
	var files []FileInfo
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if IgnoredDirs[info.Name()] && path != absRoot {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if cache != nil {
				cache.load(path)
				if path != absRoot && cache.ShouldIgnore(path) {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if cache != nil && cache.ShouldIgnore(path) {
			return nil
		}
		if skip.Matches(path) {
			return nil
		}

		rel, _ := filepath.Rel(absRoot, path)
		files = append(files, FileInfo{
			Path: rel,
			Size: info.Size(),
			Ext:  filepath.Ext(path),
		})
		return nil
	})
	return files, err
}

// Estimate projects the budget of reading every file under root, as if each
// were read once in walk order. The result can be fed to budget.Advise to
// plan delegation before any reads happen.
func Estimate(root string, skip *SkipList) (budget.State, error) {
	files, err := ScanFiles(root, NewGitIgnoreCache(root), skip)
	if err != nil {
		return budget.NewState(), err
	}
	absRoot, _ := filepath.Abs(root)
	state := budget.NewState()
	for _, f := range files {
		state.Add(budget.NewItem(filepath.Join(absRoot, f.Path), f.Size))
	}
	return state, nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"), nil
}
