package handoff

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"ctxguard/budget"
	"ctxguard/limits"
)

// Build derives a handoff from a session state. Reads are grouped along the
// dimension the delegation advisor picked; with no partitioning strategy all
// reads form one partition.
func Build(sessionID string, st budget.State, opts BuildOptions) *Artifact {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Thresholds == (limits.Thresholds{}) {
		opts.Thresholds = limits.DefaultThresholds()
	}

	tokens := st.EstimatedTokens()
	sug := budget.Advise(st)
	a := &Artifact{
		SchemaVersion:   SchemaVersion,
		GeneratedAt:     opts.Now.UTC().Truncate(time.Second),
		SessionID:       sessionID,
		Tier:            opts.Thresholds.TierFor(tokens),
		EstimatedTokens: tokens,
		ReadCount:       st.ReadCount,
		Suggestion:      sug,
		Partitions:      partition(st, sug, opts.MaxFiles),
	}
	files := uniqueFiles(st.Files)
	a.Seen = make([]string, len(files))
	for i, f := range files {
		a.Seen[i] = f.Path
	}
	a.NewFiles = newFiles(files, opts.Previous)
	a.NextSteps = nextSteps(a)
	if hash, err := hashCanonical(st.Files); err == nil {
		a.StateHash = hash
	}
	if opts.Previous != nil {
		a.PreviousHash = opts.Previous.StateHash
	}
	normalizeArtifact(a)
	return a
}

func partition(st budget.State, sug budget.Suggestion, maxFiles int) []Partition {
	kind, keys, keyOf := KindAll, []string{""}, func(budget.Item) string { return "" }
	switch sug.Strategy {
	case budget.StrategyPartitionByDirectory:
		kind, keys = KindDirectory, bucketKeys(st.Directories)
		keyOf = func(it budget.Item) string { return budget.Directory(it.Path) }
	case budget.StrategyPartitionByType:
		kind, keys = KindCategory, bucketKeys(st.Categories)
		keyOf = func(it budget.Item) string { return string(it.Category) }
	}

	byKey := make(map[string][]FileStub, len(keys))
	for _, f := range uniqueFiles(st.Files) {
		k := keyOf(budget.Item{Path: f.Path, Category: f.Category})
		byKey[k] = append(byKey[k], f)
	}

	out := make([]Partition, 0, len(keys))
	for _, k := range keys {
		files := byKey[k]
		if len(files) == 0 {
			continue
		}
		p := Partition{Kind: kind, Key: k, SubagentType: subagentFor(kind, k, sug)}
		for _, f := range files {
			p.Bytes += f.Size
		}
		p.EstimatedTokens = limits.EstimateTokens(p.Bytes)
		if maxFiles > 0 && len(files) > maxFiles {
			files = files[:maxFiles]
		}
		p.Files = files
		out = append(out, p)
	}
	return out
}

func bucketKeys(h budget.Histogram) []string {
	sorted := h.Sorted()
	keys := make([]string, len(sorted))
	for i, b := range sorted {
		keys[i] = b.Key
	}
	return keys
}

func subagentFor(kind, key string, sug budget.Suggestion) string {
	if kind != KindCategory {
		if sug.SubagentType != "" {
			return sug.SubagentType
		}
		return budget.SubagentExplore
	}
	switch budget.Category(key) {
	case budget.CategoryDocs, budget.CategoryConfig:
		return budget.SubagentExplore
	}
	return budget.SubagentGeneralPurpose
}

// uniqueFiles keeps the last read of every path, in first-read order.
func uniqueFiles(items []budget.Item) []FileStub {
	index := make(map[string]int, len(items))
	var out []FileStub
	for _, it := range items {
		stub := FileStub{Path: it.Path, Size: it.Size, Category: it.Category}
		if i, ok := index[it.Path]; ok {
			out[i] = stub
			continue
		}
		index[it.Path] = len(out)
		out = append(out, stub)
	}
	return out
}

func newFiles(files []FileStub, previous *Artifact) []FileStub {
	if previous == nil {
		return files
	}
	seen := make(map[string]bool, len(previous.Seen))
	for _, p := range previous.Seen {
		seen[p] = true
	}
	var out []FileStub
	for _, f := range files {
		if !seen[f.Path] {
			out = append(out, f)
		}
	}
	return out
}

func nextSteps(a *Artifact) []string {
	if a.ReadCount == 0 {
		return []string{"No reads tracked yet; nothing to hand off."}
	}
	var steps []string
	switch a.Suggestion.Strategy {
	case budget.StrategyPartitionByDirectory, budget.StrategyPartitionByType:
		for _, p := range a.Partitions {
			steps = append(steps, fmt.Sprintf("Spawn a %s subagent for %s (%d files already read, ~%d tokens)",
				p.SubagentType, describe(p), len(p.Files), p.EstimatedTokens))
		}
	case budget.StrategyGrepFirst:
		steps = append(steps, "Use Grep to narrow the remaining files before reading more")
	}
	if a.Tier >= limits.TierWarn {
		steps = append(steps, "Keep the main session for coordination; let subagents do further reads")
	}
	if len(steps) == 0 {
		steps = append(steps, "Continue in this session; the budget has room")
	}
	return steps
}

func describe(p Partition) string {
	switch p.Kind {
	case KindDirectory:
		if p.Key == "" {
			return "the working directory"
		}
		return p.Key + "/*"
	case KindCategory:
		return "all " + p.Key + " files"
	}
	return "the remaining work"
}

func hashCanonical(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
