package budget

import (
	"fmt"
	"time"

	"ctxguard/limits"
)

// SchemaVersion is written into every persisted state.
const SchemaVersion = 1

// Item is one tracked read.
type Item struct {
	Path     string   `json:"path"`
	Size     int64    `json:"size"`
	Category Category `json:"category"`
}

// NewItem classifies path and returns the item to fold into a state.
func NewItem(path string, size int64) Item {
	return Item{Path: path, Size: size, Category: Classify(path)}
}

// State is the budget accumulated by one session.
type State struct {
	SchemaVersion int       `json:"schema_version"`
	TotalBytes    int64     `json:"total_bytes"`
	ReadCount     int       `json:"read_count"`
	Categories    Histogram `json:"categories"`
	Directories   Histogram `json:"directories"`
	Files         []Item    `json:"files"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// NewState returns an empty state.
func NewState() State {
	return State{SchemaVersion: SchemaVersion, Files: []Item{}}
}

// EstimatedTokens is TotalBytes converted to tokens.
func (s State) EstimatedTokens() int64 {
	return limits.EstimateTokens(s.TotalBytes)
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.Categories = s.Categories.Clone()
	c.Directories = s.Directories.Clone()
	c.Files = append([]Item{}, s.Files...)
	return c
}

// Accumulate folds item into s and returns the new state. s is not modified.
func Accumulate(s State, item Item) State {
	next := s.Clone()
	next.Add(item)
	return next
}

// Add folds item into s in place.
func (s *State) Add(item Item) {
	if s.SchemaVersion == 0 {
		s.SchemaVersion = SchemaVersion
	}
	s.TotalBytes += item.Size
	s.ReadCount++
	s.Categories.Inc(string(item.Category))
	s.Directories.Inc(Directory(item.Path))
	s.Files = append(s.Files, item)
}

// Validate checks the counters against the item log.
func (s State) Validate() error {
	if s.TotalBytes < 0 || s.ReadCount < 0 {
		return fmt.Errorf("negative counters: total_bytes=%d read_count=%d", s.TotalBytes, s.ReadCount)
	}
	if s.ReadCount != len(s.Files) {
		return fmt.Errorf("read_count %d does not match %d logged files", s.ReadCount, len(s.Files))
	}
	var total int64
	for _, f := range s.Files {
		total += f.Size
	}
	if total != s.TotalBytes {
		return fmt.Errorf("total_bytes %d does not match logged sizes %d", s.TotalBytes, total)
	}
	if sum := s.Categories.Sum(); sum != s.ReadCount {
		return fmt.Errorf("category counts sum to %d, want %d", sum, s.ReadCount)
	}
	if sum := s.Directories.Sum(); sum != s.ReadCount {
		return fmt.Errorf("directory counts sum to %d, want %d", sum, s.ReadCount)
	}
	return nil
}
