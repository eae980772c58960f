package cmd

import (
	"strings"

	"ctxguard/config"
)

// subagentPrefixes mark session ids created for delegated tasks.
var subagentPrefixes = []string{"subagent-", "task-"}

type subagentCheck struct {
	reason string
	match  func(config.Config, HookEvent) bool
}

// subagentChecks run in order; the first match wins. Detection is a
// heuristic and misses subagents that carry none of these markers.
var subagentChecks = []subagentCheck{
	{config.EnvSubagent, func(c config.Config, _ HookEvent) bool { return c.ForceSubagent }},
	{config.EnvSkipTracking, func(c config.Config, _ HookEvent) bool { return c.SkipTracking }},
	{"is_subagent", func(_ config.Config, ev HookEvent) bool { return ev.IsSubagent }},
	{"session prefix", func(_ config.Config, ev HookEvent) bool {
		for _, p := range subagentPrefixes {
			if strings.HasPrefix(ev.SessionID, p) {
				return true
			}
		}
		return false
	}},
}

// DetectSubagent reports whether ev runs in a subagent context and which
// check said so.
func DetectSubagent(cfg config.Config, ev HookEvent) (reason string, ok bool) {
	for _, c := range subagentChecks {
		if c.match(cfg, ev) {
			return c.reason, true
		}
	}
	return "", false
}
