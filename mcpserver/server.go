// Package mcpserver exposes session budgets to MCP clients over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ctxguard/budget"
	"ctxguard/config"
	"ctxguard/handoff"
	"ctxguard/render"
	"ctxguard/scanner"
	"ctxguard/session"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server answers budget queries against one state directory.
type Server struct {
	cfg   config.Config
	store *session.Store
	skip  *scanner.SkipList
}

// New creates a Server for cfg.
func New(cfg config.Config) *Server {
	return &Server{
		cfg:   cfg,
		store: session.NewStore(cfg.StateDir),
		skip:  scanner.LoadSkipList(cfg.SkipFile, cfg.SkipPatterns...),
	}
}

// MCP builds the protocol server with every tool registered.
func (s *Server) MCP(version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "ctxguard", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "budget_status",
		Description: "Estimated context usage, tier and read distribution of a Claude Code session.",
	}, s.budgetStatus)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "delegation_advice",
		Description: "Delegation strategy for a session: how to split remaining work across subagents.",
	}, s.delegationAdvice)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_path",
		Description: "Category and directory a file read would be counted under, and whether tracking skips it.",
	}, s.classifyPath)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sessions",
		Description: "All tracked sessions, most recently active first.",
	}, s.listSessions)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "estimate_directory",
		Description: "Projected budget of reading every file under a directory, honoring .gitignore and skip patterns.",
	}, s.estimateDirectory)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_handoff",
		Description: "Split a session's reads into subagent partitions, save the handoff and list what changed since the last one.",
	}, s.sessionHandoff)

	return server
}

// Run serves MCP on stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context, version string) error {
	slog.Debug("mcp server starting", "state_dir", s.store.Dir())
	return s.MCP(version).Run(ctx, &mcp.StdioTransport{})
}

// SessionArgs selects one session.
type SessionArgs struct {
	SessionID string `json:"session_id" jsonschema:"Claude Code session id"`
}

// PathArgs names one file or directory.
type PathArgs struct {
	Path string `json:"path" jsonschema:"file or directory path"`
}

// NoArgs is the input of tools without parameters.
type NoArgs struct{}

// BudgetStatus is the structured result of budget_status.
type BudgetStatus struct {
	SessionID       string         `json:"session_id"`
	Tier            string         `json:"tier"`
	EstimatedTokens int64          `json:"estimated_tokens"`
	TotalBytes      int64          `json:"total_bytes"`
	ReadCount       int            `json:"read_count"`
	Categories      map[string]int `json:"categories"`
	Directories     map[string]int `json:"directories"`
	SuggestTokens   int64          `json:"suggest_tokens"`
	WarnTokens      int64          `json:"warn_tokens"`
	BlockTokens     int64          `json:"block_tokens"`
	UpdatedAt       string         `json:"updated_at,omitempty"`
}

// Advice is the structured result of delegation_advice.
type Advice struct {
	SessionID     string `json:"session_id"`
	Strategy      string `json:"strategy"`
	Rationale     string `json:"rationale,omitempty"`
	SubagentType  string `json:"subagent_type,omitempty"`
	PartitionHint string `json:"partition_hint,omitempty"`
}

// PathInfo is the structured result of classify_path.
type PathInfo struct {
	Path      string `json:"path"`
	Category  string `json:"category"`
	Directory string `json:"directory"`
	Skipped   bool   `json:"skipped"`
}

// SessionInfo is one row of list_sessions.
type SessionInfo struct {
	SessionID       string `json:"session_id"`
	Tier            string `json:"tier"`
	EstimatedTokens int64  `json:"estimated_tokens"`
	ReadCount       int    `json:"read_count"`
	ModifiedAt      string `json:"modified_at"`
	Unreadable      bool   `json:"unreadable,omitempty"`
}

// SessionList is the structured result of list_sessions.
type SessionList struct {
	Sessions []SessionInfo `json:"sessions"`
}

// HandoffArgs selects a session and caps the files listed per partition.
type HandoffArgs struct {
	SessionID string `json:"session_id" jsonschema:"Claude Code session id"`
	MaxFiles  int    `json:"max_files,omitempty" jsonschema:"files listed per partition, 0 for all"`
}

// HandoffPartition is one subagent work slice of session_handoff.
type HandoffPartition struct {
	Kind            string   `json:"kind"`
	Key             string   `json:"key"`
	SubagentType    string   `json:"subagent_type"`
	Files           []string `json:"files"`
	EstimatedTokens int64    `json:"estimated_tokens"`
}

// Handoff is the structured result of session_handoff.
type Handoff struct {
	SessionID  string             `json:"session_id"`
	Tier       string             `json:"tier"`
	Strategy   string             `json:"strategy"`
	Partitions []HandoffPartition `json:"partitions"`
	NewFiles   []string           `json:"new_files"`
	NextSteps  []string           `json:"next_steps"`
	Unchanged  bool               `json:"unchanged"`
}

// Estimate is the structured result of estimate_directory.
type Estimate struct {
	Path            string `json:"path"`
	Files           int    `json:"files"`
	TotalBytes      int64  `json:"total_bytes"`
	EstimatedTokens int64  `json:"estimated_tokens"`
	Tier            string `json:"tier"`
	Strategy        string `json:"strategy"`
}

var errNoSession = errors.New("session_id is required")

func (s *Server) state(id string) (budget.State, error) {
	if strings.TrimSpace(id) == "" {
		return budget.State{}, errNoSession
	}
	st, err := s.store.Read(id)
	if err != nil {
		return budget.State{}, fmt.Errorf("session %s: %w", id, err)
	}
	if st == nil {
		return budget.State{}, fmt.Errorf("session %s: no reads tracked", id)
	}
	return *st, nil
}

func text(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

func (s *Server) budgetStatus(_ context.Context, _ *mcp.CallToolRequest, in SessionArgs) (*mcp.CallToolResult, BudgetStatus, error) {
	st, err := s.state(in.SessionID)
	if err != nil {
		return nil, BudgetStatus{}, err
	}
	th := s.cfg.Thresholds
	tokens := st.EstimatedTokens()
	out := BudgetStatus{
		SessionID:       in.SessionID,
		Tier:            th.TierFor(tokens).String(),
		EstimatedTokens: tokens,
		TotalBytes:      st.TotalBytes,
		ReadCount:       st.ReadCount,
		Categories:      st.Categories.Map(),
		Directories:     st.Directories.Map(),
		SuggestTokens:   th.Suggest,
		WarnTokens:      th.Warn,
		BlockTokens:     th.Block,
	}
	if !st.UpdatedAt.IsZero() {
		out.UpdatedAt = st.UpdatedAt.Format(time.RFC3339)
	}
	return text(render.Report(in.SessionID, st, th)), out, nil
}

func (s *Server) delegationAdvice(_ context.Context, _ *mcp.CallToolRequest, in SessionArgs) (*mcp.CallToolResult, Advice, error) {
	st, err := s.state(in.SessionID)
	if err != nil {
		return nil, Advice{}, err
	}
	sug := budget.Advise(st)
	out := Advice{
		SessionID:     in.SessionID,
		Strategy:      string(sug.Strategy),
		Rationale:     sug.Rationale,
		SubagentType:  sug.SubagentType,
		PartitionHint: sug.PartitionHint,
	}
	if !sug.Actionable() {
		out.Strategy = "none"
		return text("No delegation needed yet."), out, nil
	}
	return text(render.Guidance(st, st.EstimatedTokens(), sug)), out, nil
}

func (s *Server) classifyPath(_ context.Context, _ *mcp.CallToolRequest, in PathArgs) (*mcp.CallToolResult, PathInfo, error) {
	if in.Path == "" {
		return nil, PathInfo{}, errors.New("path is required")
	}
	path := scanner.ExpandHome(in.Path)
	out := PathInfo{
		Path:      path,
		Category:  string(budget.Classify(path)),
		Directory: budget.Directory(path),
		Skipped:   s.skip.Matches(path),
	}
	msg := fmt.Sprintf("%s: %s in %q", path, out.Category, out.Directory)
	if out.Skipped {
		msg += " (not tracked)"
	}
	return text(msg), out, nil
}

func (s *Server) listSessions(_ context.Context, _ *mcp.CallToolRequest, _ NoArgs) (*mcp.CallToolResult, SessionList, error) {
	sums, err := s.store.List()
	if err != nil {
		return nil, SessionList{}, err
	}
	out := SessionList{Sessions: make([]SessionInfo, 0, len(sums))}
	var b strings.Builder
	for _, sum := range sums {
		tokens := sum.State.EstimatedTokens()
		info := SessionInfo{
			SessionID:       sum.ID,
			Tier:            s.cfg.Thresholds.TierFor(tokens).String(),
			EstimatedTokens: tokens,
			ReadCount:       sum.State.ReadCount,
			ModifiedAt:      sum.ModTime.UTC().Format(time.RFC3339),
			Unreadable:      sum.Err != nil,
		}
		out.Sessions = append(out.Sessions, info)
		fmt.Fprintf(&b, "- %s: %s, ~%s tokens, %d files\n", info.SessionID, info.Tier, render.Count(tokens), info.ReadCount)
	}
	if len(sums) == 0 {
		b.WriteString("No sessions tracked.")
	}
	return text(strings.TrimRight(b.String(), "\n")), out, nil
}

func (s *Server) estimateDirectory(_ context.Context, _ *mcp.CallToolRequest, in PathArgs) (*mcp.CallToolResult, Estimate, error) {
	if in.Path == "" {
		return nil, Estimate{}, errors.New("path is required")
	}
	root := scanner.ExpandHome(in.Path)
	st, err := scanner.Estimate(root, s.skip)
	if err != nil {
		return nil, Estimate{}, err
	}
	tokens := st.EstimatedTokens()
	sug := budget.Advise(st)
	out := Estimate{
		Path:            root,
		Files:           st.ReadCount,
		TotalBytes:      st.TotalBytes,
		EstimatedTokens: tokens,
		Tier:            s.cfg.Thresholds.TierFor(tokens).String(),
		Strategy:        string(sug.Strategy),
	}
	if !sug.Actionable() {
		out.Strategy = "none"
	}
	return text(render.Report(root, st, s.cfg.Thresholds)), out, nil
}

func (s *Server) sessionHandoff(_ context.Context, _ *mcp.CallToolRequest, in HandoffArgs) (*mcp.CallToolResult, Handoff, error) {
	st, err := s.state(in.SessionID)
	if err != nil {
		return nil, Handoff{}, err
	}
	id := session.SanitizeID(in.SessionID)
	prev, err := handoff.ReadLatest(s.cfg.StateDir, id)
	if err != nil {
		slog.Warn("ignoring unreadable handoff", "session", id, "err", err)
		prev = nil
	}
	a := handoff.Build(id, st, handoff.BuildOptions{
		Thresholds: s.cfg.Thresholds,
		Previous:   prev,
		MaxFiles:   in.MaxFiles,
	})
	if err := handoff.WriteLatest(s.cfg.StateDir, a); err != nil {
		return nil, Handoff{}, err
	}

	out := Handoff{
		SessionID:  id,
		Tier:       a.Tier.String(),
		Strategy:   string(a.Suggestion.Strategy),
		Partitions: make([]HandoffPartition, 0, len(a.Partitions)),
		NewFiles:   make([]string, 0, len(a.NewFiles)),
		NextSteps:  a.NextSteps,
		Unchanged:  a.Unchanged(),
	}
	if out.Strategy == "" {
		out.Strategy = "none"
	}
	for _, p := range a.Partitions {
		hp := HandoffPartition{
			Kind:            p.Kind,
			Key:             p.Key,
			SubagentType:    p.SubagentType,
			Files:           make([]string, 0, len(p.Files)),
			EstimatedTokens: p.EstimatedTokens,
		}
		for _, f := range p.Files {
			hp.Files = append(hp.Files, f.Path)
		}
		out.Partitions = append(out.Partitions, hp)
	}
	for _, f := range a.NewFiles {
		out.NewFiles = append(out.NewFiles, f.Path)
	}
	return text(handoff.RenderMarkdown(a)), out, nil
}
