package budget

import "fmt"

// Strategy is a recommended way to split remaining work.
type Strategy string

const (
	StrategyNone                 Strategy = ""
	StrategyPartitionByDirectory Strategy = "partition-by-directory"
	StrategyPartitionByType      Strategy = "partition-by-type"
	StrategyGrepFirst            Strategy = "grep-first"
)

// Subagent kinds suggested to the caller.
const (
	SubagentExplore        = "Explore"
	SubagentGeneralPurpose = "general-purpose"
)

// Heuristic triggers.
const (
	DirectoryConcentration = 5
	CategoryConcentration  = 5
	VolumeFallbackReads    = 10
)

// Suggestion is a delegation recommendation. It is derived from a state on
// demand and never persisted.
type Suggestion struct {
	Strategy      Strategy `json:"strategy"`
	Rationale     string   `json:"rationale,omitempty"`
	SubagentType  string   `json:"subagent_type,omitempty"`
	PartitionHint string   `json:"partition_hint,omitempty"`
}

// Actionable reports whether the suggestion names a strategy.
func (s Suggestion) Actionable() bool {
	return s.Strategy != StrategyNone
}

// Advise picks a delegation strategy from the histograms of s. Rules are
// tried in order and the first that applies wins:
//
//  1. one directory holds >= DirectoryConcentration reads
//  2. one category holds >= CategoryConcentration reads
//  3. at least VolumeFallbackReads reads overall
func Advise(s State) Suggestion {
	if dir, ok := s.Directories.Max(); ok && dir.Count >= DirectoryConcentration {
		return Suggestion{
			Strategy:      StrategyPartitionByDirectory,
			Rationale:     fmt.Sprintf("Reading many files from %s (%d files)", displayDir(dir.Key), dir.Count),
			SubagentType:  SubagentExplore,
			PartitionHint: fmt.Sprintf("Consider spawning subagent for %s/* analysis", dir.Key),
		}
	}

	if cat, ok := s.Categories.Max(); ok && cat.Count >= CategoryConcentration {
		kind := SubagentGeneralPurpose
		if Category(cat.Key) == CategoryDocs || Category(cat.Key) == CategoryConfig {
			kind = SubagentExplore
		}
		return Suggestion{
			Strategy:      StrategyPartitionByType,
			Rationale:     fmt.Sprintf("Reading many %s files (%d files)", cat.Key, cat.Count),
			SubagentType:  kind,
			PartitionHint: fmt.Sprintf("Consider spawning subagent for all %s files", cat.Key),
		}
	}

	if s.ReadCount >= VolumeFallbackReads {
		return Suggestion{
			Strategy:      StrategyGrepFirst,
			Rationale:     fmt.Sprintf("Already read %d files - use Grep to filter before more reads", s.ReadCount),
			SubagentType:  SubagentExplore,
			PartitionHint: "Use Grep to find relevant files before reading",
		}
	}

	return Suggestion{}
}

func displayDir(dir string) string {
	if dir == "" {
		return "the working directory"
	}
	return dir
}
