package render

import (
	"fmt"
	"strings"

	"ctxguard/budget"
	"ctxguard/limits"
)

// Report returns a markdown summary of a session budget suitable for chat
// context. Output is deterministic for the same state.
func Report(sessionID string, st budget.State, th limits.Thresholds) string {
	tokens := st.EstimatedTokens()
	tier := th.TierFor(tokens)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("## Context Budget (%s)\n", sessionID))
	b.WriteString(fmt.Sprintf("Tier: `%s`\n", tier))

	b.WriteString("\n### Usage\n")
	b.WriteString(fmt.Sprintf("- Estimated tokens: ~%s\n", Count(tokens)))
	b.WriteString(fmt.Sprintf("- Bytes read: %s\n", Count(st.TotalBytes)))
	b.WriteString(fmt.Sprintf("- Files read: %d\n", st.ReadCount))
	if next, ok := nextThreshold(tokens, th); ok {
		b.WriteString(fmt.Sprintf("- Headroom to %s: ~%s tokens\n", next.tier, Count(next.at-tokens)))
	}

	b.WriteString("\n### Categories\n")
	if st.Categories.Len() == 0 {
		b.WriteString("- No reads recorded\n")
	}
	for _, bucket := range st.Categories.Sorted() {
		b.WriteString(fmt.Sprintf("- %s: %d files\n", bucket.Key, bucket.Count))
	}

	b.WriteString("\n### Directories\n")
	if st.Directories.Len() == 0 {
		b.WriteString("- No reads recorded\n")
	}
	for i, bucket := range st.Directories.Sorted() {
		if i >= 10 {
			b.WriteString(fmt.Sprintf("- ... and %d more\n", st.Directories.Len()-10))
			break
		}
		dir := bucket.Key
		if dir == "" {
			dir = "."
		}
		b.WriteString(fmt.Sprintf("- `%s` (%d files)\n", dir, bucket.Count))
	}

	b.WriteString("\n### Delegation\n")
	if sug := budget.Advise(st); sug.Actionable() {
		b.WriteString(fmt.Sprintf("- Strategy: %s\n", sug.Strategy))
		b.WriteString(fmt.Sprintf("- Subagent: %s\n", sug.SubagentType))
		b.WriteString(fmt.Sprintf("- Hint: %s\n", sug.PartitionHint))
	} else {
		b.WriteString("- None needed\n")
	}

	return b.String()
}

type threshold struct {
	tier limits.Tier
	at   int64
}

func nextThreshold(tokens int64, th limits.Thresholds) (threshold, bool) {
	for _, t := range []threshold{
		{limits.TierSuggest, th.Suggest},
		{limits.TierWarn, th.Warn},
		{limits.TierBlock, th.Block},
	} {
		if tokens <= t.at {
			return t, true
		}
	}
	return threshold{}, false
}
