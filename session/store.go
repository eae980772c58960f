// Package session persists budget state per session id as JSON files.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ctxguard/budget"
)

const (
	filePrefix = "read_tracker_"
	fileSuffix = ".json"

	// UnknownID is used when an event carries no session id.
	UnknownID = "unknown"
)

// Store keeps one JSON file per session under a directory. It is safe for
// use by several processes: Update serializes on a per-session lock file.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on first
// write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// SanitizeID maps a session id onto a safe file name component. Ids made only
// of [A-Za-z0-9._-] are used as-is; any other id gets its unsafe runes
// replaced and a "~" plus a hash of the raw id appended, so distinct ids never
// share a file. Sanitized ids map to themselves, so ids listed by the store
// can be passed back in.
func SanitizeID(id string) string {
	if id == "" {
		return UnknownID
	}
	if isHashedID(id) {
		return id
	}
	var b strings.Builder
	changed := false
	for _, r := range id {
		if isSafeRune(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
		changed = true
	}
	out := b.String()
	if !changed && strings.Trim(out, ".") != "" {
		return out
	}
	sum := sha256.Sum256([]byte(id))
	return out + "~" + hex.EncodeToString(sum[:8])
}

func isSafeRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '.'
}

func isHashedID(id string) bool {
	i := strings.LastIndexByte(id, '~')
	if i <= 0 || len(id)-i-1 != 16 {
		return false
	}
	for _, r := range id[:i] {
		if !isSafeRune(r) {
			return false
		}
	}
	for _, r := range id[i+1:] {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

// Path returns the state file for a session.
func (s *Store) Path(sessionID string) string {
	return filepath.Join(s.dir, filePrefix+SanitizeID(sessionID)+fileSuffix)
}

// Read returns the persisted state for a session.
// Returns (nil, nil) when no state exists, and an error when it is corrupt.
func (s *Store) Read(sessionID string) (*budget.State, error) {
	data, err := os.ReadFile(s.Path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var state budget.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	normalizeState(&state)
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return &state, nil
}

// Load returns the persisted state, or a fresh one when the state is missing
// or unreadable. Budget tracking is advisory, so corruption is never an error.
func (s *Store) Load(sessionID string) budget.State {
	state, err := s.Read(sessionID)
	if err != nil {
		slog.Debug("discarding unreadable session state", "session", sessionID, "error", err)
		return budget.NewState()
	}
	if state == nil {
		return budget.NewState()
	}
	return *state
}

// Save overwrites the session's state atomically.
func (s *Store) Save(sessionID string, state budget.State) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	normalizeState(&state)
	return writeJSONAtomic(s.Path(sessionID), state)
}

// Update loads a session, applies fn and saves the result while holding the
// session lock. fn returns false to skip the save. If the lock cannot be
// taken the update still runs unlocked.
func (s *Store) Update(sessionID string, fn func(budget.State) (budget.State, bool)) (budget.State, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return budget.NewState(), fmt.Errorf("create state dir: %w", err)
	}

	unlock, err := lockFile(s.Path(sessionID) + ".lock")
	if err != nil {
		slog.Debug("session lock unavailable, updating unlocked", "session", sessionID, "error", err)
	} else {
		defer unlock()
	}

	next, save := fn(s.Load(sessionID))
	if !save {
		return next, nil
	}
	next.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	if err := s.Save(sessionID, next); err != nil {
		return next, err
	}
	return next, nil
}

// Delete removes a session's state. Deleting a missing session is not an error.
func (s *Store) Delete(sessionID string) error {
	path := s.Path(sessionID)
	for _, p := range []string{path, path + ".lock"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Summary describes one stored session.
type Summary struct {
	ID      string       `json:"id"`
	Path    string       `json:"path"`
	ModTime time.Time    `json:"mod_time"`
	State   budget.State `json:"-"`
	Err     error        `json:"-"`
}

// List returns every stored session, most recently modified first.
// Sessions whose state cannot be decoded are included with Err set.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Summary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		sum := Summary{ID: id, Path: filepath.Join(s.dir, name), ModTime: info.ModTime()}
		state, err := s.Read(id)
		switch {
		case err != nil:
			sum.Err = err
			sum.State = budget.NewState()
		case state != nil:
			sum.State = *state
		default:
			sum.State = budget.NewState()
		}
		out = append(out, sum)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// IDFromPath returns the session id of a state file path, or false if the
// path is not a state file.
func IDFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix), true
}

func writeJSONAtomic(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func normalizeState(state *budget.State) {
	if state.SchemaVersion == 0 {
		state.SchemaVersion = budget.SchemaVersion
	}
	if state.Files == nil {
		state.Files = []budget.Item{}
	}
}
