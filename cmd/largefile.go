package cmd

import (
	"fmt"

	"ctxguard/limits"
	"ctxguard/render"
	"ctxguard/scanner"
)

// guardLargeFile stops whole-file reads that cannot fit in one Read call and
// warns about reads that are merely large.
func (h *Hooks) guardLargeFile(ev HookEvent) Result {
	if !ev.IsRead() || ev.IsChunked() {
		return Result{}
	}
	path := scanner.ExpandHome(ev.ToolInput.FilePath)
	if path == "" || h.Skip.Matches(path) {
		return Result{}
	}
	size, ok := h.Size(path)
	if !ok {
		return Result{}
	}

	lf := h.Config.LargeFile
	tokens := limits.EstimateTokens(size)
	switch {
	case size > lf.BlockBytes || tokens > lf.MaxReadTokens:
		return Result{Deny: true, StopReason: fmt.Sprintf(
			"BLOCKED: File too large for single read (%s bytes, ~%s tokens).\n\n"+
				"Options:\n"+
				"1. Use chunked reading: Read with offset=0, limit=500 (then continue)\n"+
				"2. Use Grep to search for specific content\n"+
				"3. Delegate to a subagent (Task tool) for fresh context\n\n"+
				"Claude Code limit: %s tokens per Read call.",
			render.Count(size), render.Count(tokens), render.Count(lf.MaxReadTokens))}
	case size > lf.WarnBytes:
		return Result{Notice: fmt.Sprintf(
			"WARNING: Large file (%s bytes, ~%s tokens). "+
				"Consider using offset/limit params or delegating to subagent if context is limited.",
			render.Count(size), render.Count(tokens))}
	}
	return Result{}
}
