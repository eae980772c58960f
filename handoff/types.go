// Package handoff packages a session's reads into partitions that can be
// handed to subagents with fresh context.
package handoff

import (
	"time"

	"ctxguard/budget"
	"ctxguard/limits"
)

const SchemaVersion = 1

// Partition kinds.
const (
	KindDirectory = "directory"
	KindCategory  = "category"
	KindAll       = "all"
)

// FileStub is a file the session has already read.
type FileStub struct {
	Path     string          `json:"path"`
	Size     int64           `json:"size"`
	Category budget.Category `json:"category"`
}

// Partition is one slice of work for a subagent.
type Partition struct {
	Kind            string     `json:"kind"`
	Key             string     `json:"key"`
	SubagentType    string     `json:"subagent_type"`
	Files           []FileStub `json:"files"`
	Bytes           int64      `json:"bytes"`
	EstimatedTokens int64      `json:"estimated_tokens"`
}

// Artifact is the persisted handoff payload shared with subagents.
type Artifact struct {
	SchemaVersion   int               `json:"schema_version"`
	GeneratedAt     time.Time         `json:"generated_at"`
	SessionID       string            `json:"session_id"`
	Tier            limits.Tier       `json:"tier"`
	EstimatedTokens int64             `json:"estimated_tokens"`
	ReadCount       int               `json:"read_count"`
	Suggestion      budget.Suggestion `json:"suggestion"`
	Partitions      []Partition       `json:"partitions"`
	// NewFiles were read after the previous handoff of the session.
	NewFiles []FileStub `json:"new_files"`
	// Seen lists every path the session had read, uncapped by MaxFiles.
	Seen      []string `json:"seen"`
	NextSteps []string `json:"next_steps"`

	StateHash    string `json:"state_hash"`
	PreviousHash string `json:"previous_hash,omitempty"`
}

// Unchanged reports whether the session has not read anything since the
// previous handoff.
func (a *Artifact) Unchanged() bool {
	return a.PreviousHash != "" && a.PreviousHash == a.StateHash
}

// BuildOptions controls handoff generation behavior.
type BuildOptions struct {
	Thresholds limits.Thresholds
	Previous   *Artifact
	Now        time.Time
	// MaxFiles caps the files listed per partition; 0 means no cap.
	MaxFiles int
}
