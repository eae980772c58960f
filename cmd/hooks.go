// Package cmd implements the Claude Code hook handlers.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"ctxguard/config"
	"ctxguard/scanner"
	"ctxguard/session"
)

// Hook names accepted by RunHook.
const (
	HookContextTracker = "context-tracker"
	HookLargeFileGuard = "large-file-guard"
	HookPDFGuard       = "pdf-guard"
)

// Hooks holds what every handler needs for one invocation.
type Hooks struct {
	Config config.Config
	Store  *session.Store
	Skip   *scanner.SkipList
	// Size returns the byte length of a path, or false when unavailable.
	Size func(path string) (int64, bool)
}

// New wires hooks from a resolved configuration.
func New(cfg config.Config) *Hooks {
	return &Hooks{
		Config: cfg,
		Store:  session.NewStore(cfg.StateDir),
		Skip:   scanner.LoadSkipList(cfg.SkipFile, cfg.SkipPatterns...),
		Size:   scanner.FileSize,
	}
}

type handler func(*Hooks, HookEvent) Result

var handlers = map[string]handler{
	HookContextTracker: (*Hooks).track,
	HookLargeFileGuard: (*Hooks).guardLargeFile,
	HookPDFGuard:       (*Hooks).guardPDF,
}

// Names lists the available hooks.
func Names() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunHook executes the named hook against one event read from in. Input
// that is not a hook event passes through silently.
func RunHook(name string, h *Hooks, in io.Reader, out, errOut io.Writer) error {
	fn, ok := handlers[name]
	if !ok {
		return fmt.Errorf("unknown hook: %s\nAvailable: %s", name, strings.Join(Names(), ", "))
	}

	ev, err := DecodeEvent(in)
	if err != nil {
		slog.Debug("ignoring malformed hook input", "hook", name, "error", err)
		return nil
	}

	res := fn(h, ev)
	slog.Debug("hook finished", "hook", name, "session", ev.SessionID,
		"path", ev.ToolInput.FilePath, "deny", res.Deny, "notice", res.Notice != "")
	return res.Write(out, errOut)
}
