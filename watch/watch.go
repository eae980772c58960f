// Package watch follows the session state directory and reports when a
// session crosses into a different budget tier.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ctxguard/limits"
	"ctxguard/session"

	"github.com/fsnotify/fsnotify"
)

// EventLogName is the tier-change log kept in the state directory.
const EventLogName = "ctxguard-events.log"

// Event is a tier change of one session.
type Event struct {
	Time      time.Time   `json:"time"`
	Session   string      `json:"session"`
	From      limits.Tier `json:"from"`
	Tier      limits.Tier `json:"tier"`
	Tokens    int64       `json:"tokens"`
	ReadCount int         `json:"read_count"`
	Removed   bool        `json:"removed,omitempty"`
}

// Escalated reports whether the session moved to a higher tier.
func (e Event) Escalated() bool {
	return !e.Removed && e.Tier > e.From
}

// sessionState is the last observation of one session.
type sessionState struct {
	tier   limits.Tier
	tokens int64
}

// Daemon watches a session store for tier changes.
type Daemon struct {
	store      *session.Store
	thresholds limits.Thresholds
	watcher    *fsnotify.Watcher
	eventLog   string

	mu       sync.RWMutex
	sessions map[string]sessionState
}

// NewDaemon creates a daemon over the store's directory.
func NewDaemon(store *session.Store, th limits.Thresholds) (*Daemon, error) {
	if err := os.MkdirAll(store.Dir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Daemon{
		store:      store,
		thresholds: th,
		watcher:    watcher,
		eventLog:   filepath.Join(store.Dir(), EventLogName),
		sessions:   make(map[string]sessionState),
	}, nil
}

// Run records the current tiers, then sends an Event on out for every tier
// change until ctx is done. out is closed when Run returns.
func (d *Daemon) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)
	defer d.watcher.Close()

	if err := d.seed(); err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}
	if err := d.watcher.Add(d.store.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", d.store.Dir(), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case fsEvent, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}
			ev, changed := d.handleEvent(fsEvent)
			if !changed {
				continue
			}
			d.logEvent(ev)
			select {
			case out <- ev:
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

// seed records every stored session without emitting events.
func (d *Daemon) seed() error {
	sums, err := d.store.List()
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range sums {
		tokens := s.State.EstimatedTokens()
		d.sessions[s.ID] = sessionState{tier: d.thresholds.TierFor(tokens), tokens: tokens}
	}
	return nil
}

// handleEvent turns a file event into a tier change, if there was one.
func (d *Daemon) handleEvent(fsEvent fsnotify.Event) (Event, bool) {
	id, ok := session.IDFromPath(fsEvent.Name)
	if !ok {
		return Event{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	prev, known := d.sessions[id]

	if fsEvent.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if _, err := os.Stat(fsEvent.Name); err == nil || !known {
			return Event{}, false
		}
		delete(d.sessions, id)
		return Event{Time: time.Now(), Session: id, From: prev.tier, Tier: limits.TierNormal, Removed: true}, true
	}
	if fsEvent.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return Event{}, false
	}

	state, err := d.store.Read(id)
	if err != nil || state == nil {
		return Event{}, false
	}
	tokens := state.EstimatedTokens()
	tier := d.thresholds.TierFor(tokens)
	d.sessions[id] = sessionState{tier: tier, tokens: tokens}
	if known && prev.tier == tier {
		return Event{}, false
	}
	if !known && tier == limits.TierNormal {
		return Event{}, false
	}
	return Event{
		Time:      time.Now(),
		Session:   id,
		From:      prev.tier,
		Tier:      tier,
		Tokens:    tokens,
		ReadCount: state.ReadCount,
	}, true
}

// logEvent appends an event to the log file
func (d *Daemon) logEvent(e Event) {
	f, err := os.OpenFile(d.eventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	// Format: timestamp | session | from -> tier | tokens | reads
	to := e.Tier.String()
	if e.Removed {
		to = "removed"
	}
	fmt.Fprintf(f, "%s | %-36s | %7s -> %-7s | %8d | %4d\n",
		e.Time.Format("2006-01-02 15:04:05"),
		e.Session,
		e.From,
		to,
		e.Tokens,
		e.ReadCount,
	)
}

// Tier returns the last observed tier of a session.
func (d *Daemon) Tier(id string) (limits.Tier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sessions[id]
	return s.tier, ok
}
