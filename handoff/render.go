package handoff

import (
	"fmt"
	"strings"
)

// RenderMarkdown returns a markdown handoff summary suitable for chat context.
// Output is deterministic for the same artifact content.
func RenderMarkdown(a *Artifact) string {
	if a == nil {
		return ""
	}
	normalizeArtifact(a)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("## Handoff (%s)\n", a.SessionID))
	b.WriteString(fmt.Sprintf("Tier: `%s` · ~%d tokens · %d reads\n", a.Tier, a.EstimatedTokens, a.ReadCount))

	if a.Suggestion.Actionable() {
		b.WriteString(fmt.Sprintf("Strategy: %s (%s)\n", a.Suggestion.Strategy, a.Suggestion.Rationale))
	}

	b.WriteString("\n### Partitions\n")
	if len(a.Partitions) == 0 {
		b.WriteString("- None\n")
	}
	for _, p := range a.Partitions {
		b.WriteString(fmt.Sprintf("- **%s** → %s subagent, %d files, ~%d tokens\n",
			describe(p), p.SubagentType, len(p.Files), p.EstimatedTokens))
		for i, f := range p.Files {
			if i >= 10 {
				b.WriteString(fmt.Sprintf("  - ... and %d more\n", len(p.Files)-10))
				break
			}
			b.WriteString(fmt.Sprintf("  - `%s` (%d bytes)\n", f.Path, f.Size))
		}
	}

	b.WriteString("\n### New Since Last Handoff\n")
	switch {
	case a.Unchanged():
		b.WriteString("- Nothing new\n")
	case len(a.NewFiles) == 0:
		b.WriteString("- No files\n")
	default:
		for i, f := range a.NewFiles {
			if i >= 20 {
				b.WriteString(fmt.Sprintf("- ... and %d more\n", len(a.NewFiles)-20))
				break
			}
			b.WriteString(fmt.Sprintf("- `%s` (%s)\n", f.Path, f.Category))
		}
	}

	b.WriteString("\n### Next Steps\n")
	for _, s := range a.NextSteps {
		b.WriteString(fmt.Sprintf("- %s\n", s))
	}

	return b.String()
}

// RenderCompact returns a short single-paragraph summary.
func RenderCompact(a *Artifact, maxItems int) string {
	if a == nil {
		return ""
	}
	if maxItems <= 0 {
		maxItems = 3
	}
	parts := make([]string, 0, maxItems)
	for i, p := range a.Partitions {
		if i >= maxItems {
			parts = append(parts, fmt.Sprintf("+%d more", len(a.Partitions)-maxItems))
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%d)", describe(p), len(p.Files)))
	}
	return fmt.Sprintf("handoff %s: %s, ~%d tokens; %s",
		a.SessionID, a.Tier, a.EstimatedTokens, strings.Join(parts, ", "))
}
