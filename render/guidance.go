// Package render turns budget verdicts and session state into text for
// hooks, the CLI and MCP clients.
package render

import (
	"fmt"
	"strings"

	"ctxguard/budget"
	"ctxguard/limits"
)

// Guidance is the full delegation report attached to warn and block verdicts.
func Guidance(st budget.State, tokens int64, sug budget.Suggestion) string {
	var b strings.Builder
	b.WriteString("## Delegation Recommended\n\n")
	fmt.Fprintf(&b, "**Context status:** ~%s tokens consumed (%d files)\n\n", Count(tokens), st.ReadCount)

	if sug.Actionable() {
		fmt.Fprintf(&b, "**Suggested strategy:** %s\n", sug.Strategy)
		fmt.Fprintf(&b, "**Rationale:** %s\n", sug.Rationale)
		fmt.Fprintf(&b, "**Subagent type:** %s\n", sug.SubagentType)
		fmt.Fprintf(&b, "**Partition hint:** %s\n\n", sug.PartitionHint)
	}

	kind := sug.SubagentType
	if kind == "" {
		kind = budget.SubagentExplore
	}
	b.WriteString("### Recommended Actions\n\n")
	b.WriteString("1. **Decompose the task** into independent parts before reading further\n")
	fmt.Fprintf(&b, "2. **Spawn a %s subagent** with fresh context for the remaining analysis:\n", kind)
	b.WriteString("   ```\n")
	fmt.Fprintf(&b, "   Task(subagent_type=%q, description=\"Analyze [scope]\", prompt=\"...\")\n", kind)
	b.WriteString("   ```\n")
	b.WriteString("3. **Or filter first** with Grep before reading more files:\n")
	b.WriteString("   ```\n")
	b.WriteString("   Grep(pattern=\"[relevant term]\", output_mode=\"files_with_matches\")\n")
	b.WriteString("   ```\n\n")

	b.WriteString("### File Distribution\n")
	for _, bucket := range st.Categories.Sorted() {
		fmt.Fprintf(&b, "- %s: %d files\n", bucket.Key, bucket.Count)
	}

	return strings.TrimRight(b.String(), "\n")
}

// SuggestLine is the compressed advisory for the suggest tier.
func SuggestLine(tokens int64, sug budget.Suggestion) string {
	return fmt.Sprintf("💡 Context at ~%s tokens. Consider %s: %s", Count(tokens), sug.Strategy, sug.PartitionHint)
}

// HighUsageNotice wraps guidance for the warn tier.
func HighUsageNotice(guidance string) string {
	return "⚠️  HIGH CONTEXT USAGE\n\n" + guidance
}

// CriticalNotice wraps guidance for an allowed read past the block threshold.
func CriticalNotice(tokens, limit int64, guidance string) string {
	return fmt.Sprintf("🚨 CRITICAL: Context at ~%s tokens (>%s limit)\n\n%s", Count(tokens), Count(limit), guidance)
}

// BlockReason is the stop reason of a denied read.
func BlockReason(guidance string, item budget.Item, totalBytes, tokens int64) string {
	return fmt.Sprintf("BLOCKED: Context limit reached.\n\n%s\n\n"+
		"This file (%s bytes) would push total to %s bytes (~%s tokens).\n\n"+
		"**Delegate remaining work to a subagent for fresh context.**",
		guidance, Count(item.Size), Count(totalBytes), Count(tokens))
}

// Apply fills the StopReason or Notice of v. st must be the state that v was
// evaluated on, including item.
func Apply(v *budget.Verdict, st budget.State, item budget.Item, th limits.Thresholds) {
	switch v.Advisory {
	case budget.AdvisoryLine:
		v.Notice = SuggestLine(v.EstimatedTokens, v.Suggestion)
	case budget.AdvisoryFull:
		guidance := Guidance(st, v.EstimatedTokens, v.Suggestion)
		switch {
		case !v.Proceed:
			v.StopReason = BlockReason(guidance, item, st.TotalBytes, v.EstimatedTokens)
		case v.Tier == limits.TierBlock:
			v.Notice = CriticalNotice(v.EstimatedTokens, th.Block, guidance)
		default:
			v.Notice = HighUsageNotice(guidance)
		}
	}
}
