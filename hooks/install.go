// Package hooks registers ctxguard's hook commands in Claude Code settings.
package hooks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PreToolUse is the settings key of hooks that run before a tool call.
const PreToolUse = "PreToolUse"

// ReadMatcher limits hooks to the Read tool.
const ReadMatcher = "Read"

// Hook is a decoded view of one matcher entry of settings.json.
type Hook struct {
	Matcher string      `json:"matcher"`
	Hooks   []HookEntry `json:"hooks"`
}

// HookEntry is a decoded view of a single hook action.
type HookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

// Entries returns one command action per hook name.
func Entries(binary string, names []string) []HookEntry {
	out := make([]HookEntry, 0, len(names))
	for _, name := range names {
		out = append(out, HookEntry{Type: "command", Command: fmt.Sprintf("%s hook %s", binary, name)})
	}
	return out
}

// Settings is a settings.json document. Only the PreToolUse Read matcher is
// ever rewritten; every other key, event and field is kept as raw JSON.
type Settings struct {
	raw    map[string]json.RawMessage
	events map[string]json.RawMessage
	pre    []json.RawMessage
}

// Load reads a settings file. A missing file yields empty settings.
func Load(path string) (*Settings, error) {
	s := &Settings{raw: map[string]json.RawMessage{}, events: map[string]json.RawMessage{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	if err := json.Unmarshal(data, &s.raw); err != nil {
		return nil, fmt.Errorf("parse settings JSON: %w", err)
	}
	if s.raw == nil {
		s.raw = map[string]json.RawMessage{}
	}
	if raw, ok := s.raw["hooks"]; ok {
		if err := json.Unmarshal(raw, &s.events); err != nil {
			return nil, fmt.Errorf("parse settings hooks: %w", err)
		}
		if s.events == nil {
			s.events = map[string]json.RawMessage{}
		}
	}
	if raw, ok := s.events[PreToolUse]; ok {
		if err := json.Unmarshal(raw, &s.pre); err != nil {
			return nil, fmt.Errorf("parse %s hooks: %w", PreToolUse, err)
		}
	}
	return s, nil
}

// matcher is one PreToolUse entry split into its fields. hooks holds the raw
// actions so fields ctxguard does not know survive a rewrite.
type matcher struct {
	fields map[string]json.RawMessage
	name   string
	hooks  []json.RawMessage
}

func decodeMatcher(raw json.RawMessage) (matcher, bool) {
	var m matcher
	if err := json.Unmarshal(raw, &m.fields); err != nil || m.fields == nil {
		return m, false
	}
	if v, ok := m.fields["matcher"]; ok {
		if err := json.Unmarshal(v, &m.name); err != nil {
			return m, false
		}
	}
	if v, ok := m.fields["hooks"]; ok {
		if err := json.Unmarshal(v, &m.hooks); err != nil {
			return m, false
		}
	}
	return m, true
}

func (m matcher) encode() (json.RawMessage, error) {
	hooks, err := json.Marshal(m.hooks)
	if err != nil {
		return nil, err
	}
	m.fields["hooks"] = hooks
	return json.Marshal(m.fields)
}

func commandOf(raw json.RawMessage) string {
	var e struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return ""
	}
	return e.Command
}

// Install adds entries under PreToolUse/Read, skipping commands already
// present. It reports how many entries were added.
func (s *Settings) Install(entries []HookEntry) (int, error) {
	idx := -1
	var m matcher
	for i, raw := range s.pre {
		if dm, ok := decodeMatcher(raw); ok && dm.name == ReadMatcher {
			idx, m = i, dm
			break
		}
	}
	if idx < 0 {
		name, _ := json.Marshal(ReadMatcher)
		m = matcher{fields: map[string]json.RawMessage{"matcher": name}}
	}

	present := make(map[string]bool, len(m.hooks))
	for _, h := range m.hooks {
		present[commandOf(h)] = true
	}
	added := 0
	for _, e := range entries {
		if present[e.Command] {
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			return 0, err
		}
		m.hooks = append(m.hooks, data)
		present[e.Command] = true
		added++
	}
	if added == 0 {
		return 0, nil
	}

	data, err := m.encode()
	if err != nil {
		return 0, err
	}
	if idx < 0 {
		s.pre = append(s.pre, data)
	} else {
		s.pre[idx] = data
	}
	return added, nil
}

// Uninstall removes every PreToolUse action whose command runs
// "<binary> hook". Matchers left without actions are dropped; entries
// without ctxguard actions are kept byte for byte.
func (s *Settings) Uninstall(binary string) (int, error) {
	prefix := binary + " hook "
	removed := 0
	kept := make([]json.RawMessage, 0, len(s.pre))
	for _, raw := range s.pre {
		m, ok := decodeMatcher(raw)
		if !ok {
			kept = append(kept, raw)
			continue
		}
		var actions []json.RawMessage
		for _, h := range m.hooks {
			if strings.HasPrefix(commandOf(h), prefix) {
				continue
			}
			actions = append(actions, h)
		}
		n := len(m.hooks) - len(actions)
		if n == 0 {
			kept = append(kept, raw)
			continue
		}
		removed += n
		if len(actions) == 0 {
			continue
		}
		m.hooks = actions
		data, err := m.encode()
		if err != nil {
			return 0, err
		}
		kept = append(kept, data)
	}
	s.pre = kept
	return removed, nil
}

// Matchers decodes the entries of a hook event for inspection.
func (s *Settings) Matchers(event string) ([]Hook, error) {
	var out []Hook
	if event == PreToolUse {
		for _, raw := range s.pre {
			var h Hook
			if err := json.Unmarshal(raw, &h); err != nil {
				return nil, err
			}
			out = append(out, h)
		}
		return out, nil
	}
	raw, ok := s.events[event]
	if !ok {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalJSON writes the document with the updated hooks.
func (s *Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.raw)+1)
	for k, v := range s.raw {
		out[k] = v
	}
	events := make(map[string]json.RawMessage, len(s.events)+1)
	for k, v := range s.events {
		events[k] = v
	}
	delete(events, PreToolUse)
	if len(s.pre) > 0 {
		data, err := json.Marshal(s.pre)
		if err != nil {
			return nil, err
		}
		events[PreToolUse] = data
	}
	delete(out, "hooks")
	if len(events) > 0 {
		data, err := json.Marshal(events)
		if err != nil {
			return nil, err
		}
		out["hooks"] = data
	}
	return json.Marshal(out)
}

// Save writes the settings atomically.
func (s *Settings) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// GlobalSettingsPath returns the path to the user settings file.
func GlobalSettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".claude", "settings.json"), nil
}

// ProjectSettingsPath returns the path to a project's settings file.
func ProjectSettingsPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".claude", "settings.json")
}
