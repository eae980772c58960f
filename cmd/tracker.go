package cmd

import (
	"log/slog"

	"ctxguard/budget"
	"ctxguard/render"
	"ctxguard/scanner"
)

// track folds a read into the session budget and applies the escalation
// policy. Any failure to observe the file or the state lets the read through.
func (h *Hooks) track(ev HookEvent) Result {
	if !ev.IsRead() {
		return Result{}
	}
	if reason, ok := DetectSubagent(h.Config, ev); ok {
		slog.Debug("subagent read not tracked", "session", ev.SessionID, "reason", reason)
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

	item := budget.NewItem(path, size)
	policy := budget.Policy{Thresholds: h.Config.Thresholds, BlockAtLimit: h.Config.BlockAtLimit}

	var (
		verdict   budget.Verdict
		evaluated budget.State
		ran       bool
	)
	_, err := h.Store.Update(ev.SessionID, func(st budget.State) (budget.State, bool) {
		ran = true
		evaluated = budget.Accumulate(st, item)
		verdict = policy.Evaluate(evaluated)
		// A denied read never reaches the context, so it is not counted.
		return evaluated, verdict.Proceed
	})
	if err != nil {
		slog.Warn("session state not saved", "session", ev.SessionID, "error", err)
	}
	if !ran {
		return Result{}
	}

	render.Apply(&verdict, evaluated, item, h.Config.Thresholds)
	slog.Debug("read tracked", "session", ev.SessionID, "path", path, "bytes", size,
		"tier", verdict.Tier, "tokens", verdict.EstimatedTokens)

	return Result{
		Deny:       !verdict.Proceed,
		StopReason: verdict.StopReason,
		Notice:     verdict.Notice,
	}
}
