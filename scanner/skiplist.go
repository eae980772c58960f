package scanner

import (
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultSkipPatterns cover files handled by dedicated extractors rather than
// plain reads.
var DefaultSkipPatterns = []string{
	"*.pdf",
	"*.png",
	"*.jpg",
	"*.jpeg",
	"*.gif",
	"*.webp",
}

// SkipList matches paths against gitignore-style patterns, case-insensitively.
// Paths are usually absolute, so directory patterns need a "**/" prefix.
type SkipList struct {
	matcher  *ignore.GitIgnore
	patterns []string
}

// NewSkipList compiles patterns. Blank lines and comments are allowed.
func NewSkipList(patterns ...string) *SkipList {
	lowered := lowerAll(patterns)
	return &SkipList{
		matcher:  ignore.CompileIgnoreLines(lowered...),
		patterns: lowered,
	}
}

// LoadSkipList compiles patterns plus the lines of an ignore file. A missing
// file is not an error; the patterns alone are used.
func LoadSkipList(file string, patterns ...string) *SkipList {
	if file == "" {
		return NewSkipList(patterns...)
	}
	lines, err := readLines(ExpandHome(file))
	if err != nil {
		return NewSkipList(patterns...)
	}
	return NewSkipList(append(append([]string{}, patterns...), lines...)...)
}

// Patterns returns the compiled patterns in order, without blank lines and
// comments.
func (s *SkipList) Patterns() []string {
	out := make([]string, 0, len(s.patterns))
	for _, p := range s.patterns {
		if t := strings.TrimSpace(p); t != "" && !strings.HasPrefix(t, "#") {
			out = append(out, t)
		}
	}
	return out
}

// Matches reports whether path should be skipped.
func (s *SkipList) Matches(path string) bool {
	if s == nil || s.matcher == nil || path == "" {
		return false
	}
	p := strings.ToLower(filepath.ToSlash(strings.ReplaceAll(path, `\`, "/")))
	return s.matcher.MatchesPath(p)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(p)))
	}
	return out
}
