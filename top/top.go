// Package top is a live terminal dashboard of tracked sessions.
package top

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"ctxguard/budget"
	"ctxguard/limits"
	"ctxguard/render"
	"ctxguard/session"
	"ctxguard/watch"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RefreshInterval is how often the session list is reloaded.
const RefreshInterval = 2 * time.Second

const maxEvents = 5

type tickMsg time.Time

type sessionsMsg struct {
	sessions []session.Summary
	err      error
}

type eventMsg watch.Event

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	columnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("236")).Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Model lists sessions ordered by estimated tokens.
type Model struct {
	store      *session.Store
	thresholds limits.Thresholds

	sessions []session.Summary
	events   []watch.Event
	selected int
	width    int
	err      error
	loaded   bool
}

// NewModel creates a dashboard over store.
func NewModel(store *session.Store, th limits.Thresholds) Model {
	return Model{store: store, thresholds: th, width: 80}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load, tick())
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) load() tea.Msg {
	sums, err := m.store.List()
	return sessionsMsg{sessions: sums, err: err}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.sessions)-1 {
				m.selected++
			}
		case "r":
			return m, m.load
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.load, tick())

	case sessionsMsg:
		m.loaded = true
		m.err = msg.err
		if msg.err == nil {
			m.sessions = byTokens(msg.sessions)
		}
		if m.selected >= len(m.sessions) {
			m.selected = max(len(m.sessions)-1, 0)
		}
		return m, nil

	case eventMsg:
		m.events = append([]watch.Event{watch.Event(msg)}, m.events...)
		if len(m.events) > maxEvents {
			m.events = m.events[:maxEvents]
		}
		return m, m.load
	}
	return m, nil
}

func byTokens(sums []session.Summary) []session.Summary {
	out := append([]session.Summary(nil), sums...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].State.TotalBytes > out[j].State.TotalBytes
	})
	return out
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("ctxguard top"))
	b.WriteString(columnStyle.Render(fmt.Sprintf("  %d sessions · %s", len(m.sessions), m.store.Dir())))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("error: "+m.err.Error()) + "\n")
	}
	if !m.loaded {
		b.WriteString("loading...\n")
		return b.String()
	}
	if len(m.sessions) == 0 {
		b.WriteString(columnStyle.Render("No sessions tracked") + "\n")
	}

	idWidth := 12
	for _, s := range m.sessions {
		idWidth = max(idWidth, len(s.ID))
	}
	gaugeWidth := min(max(m.width-idWidth-40, 10), 40)

	b.WriteString(columnStyle.Render(fmt.Sprintf("%-*s  %-7s  %9s  %5s  %s", idWidth, "SESSION", "TIER", "TOKENS", "FILES", "BUDGET")))
	b.WriteString("\n")
	for i, s := range m.sessions {
		tokens := s.State.EstimatedTokens()
		tier := m.thresholds.TierFor(tokens)
		row := fmt.Sprintf("%-*s  %s  %9s  %5d  %s",
			idWidth, s.ID,
			render.TierStyle(tier).Render(fmt.Sprintf("%-7s", tier)),
			"~"+render.Count(tokens),
			s.State.ReadCount,
			render.Gauge(tokens, m.thresholds.Block, gaugeWidth, true))
		if i == m.selected {
			row = selectedStyle.Render(row)
		}
		b.WriteString(row + "\n")
	}

	if m.selected < len(m.sessions) {
		sel := m.sessions[m.selected]
		b.WriteString("\n")
		if sug := budget.Advise(sel.State); sug.Actionable() {
			b.WriteString(fmt.Sprintf("%s: %s\n", sug.Strategy, sug.PartitionHint))
		}
		if top, ok := sel.State.Directories.Max(); ok {
			b.WriteString(columnStyle.Render(fmt.Sprintf("busiest directory %s (%d files) · updated %s",
				top.Key, top.Count, render.FormatTimeAgo(sel.ModTime))) + "\n")
		}
	}

	if len(m.events) > 0 {
		b.WriteString("\n" + headerStyle.Render("Recent tier changes") + "\n")
		for _, e := range m.events {
			to := e.Tier.String()
			if e.Removed {
				to = "removed"
			}
			b.WriteString(fmt.Sprintf("  %s %s %s -> %s\n",
				columnStyle.Render(e.Time.Format("15:04:05")), e.Session, e.From, to))
		}
	}

	b.WriteString("\n" + helpStyle.Render("↑/↓ select · r reload · q quit"))
	return b.String()
}

// Run starts the dashboard and forwards watcher events into it until the
// program exits.
func Run(ctx context.Context, store *session.Store, th limits.Thresholds) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(store, th)
	m.width = render.TerminalWidth(os.Stdout, m.width)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if d, err := watch.NewDaemon(store, th); err == nil {
		events := make(chan watch.Event)
		go func() {
			_ = d.Run(ctx, events)
		}()
		go func() {
			for e := range events {
				p.Send(eventMsg(e))
			}
		}()
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
