package limits

import "fmt"

// Tier is an escalation level derived from cumulative estimated tokens.
type Tier int

const (
	TierNormal Tier = iota
	TierSuggest
	TierWarn
	TierBlock
)

func (t Tier) String() string {
	switch t {
	case TierSuggest:
		return "suggest"
	case TierWarn:
		return "warn"
	case TierBlock:
		return "block"
	default:
		return "normal"
	}
}

// MarshalText lets tiers appear by name in JSON output.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (t *Tier) UnmarshalText(text []byte) error {
	switch string(text) {
	case "normal":
		*t = TierNormal
	case "suggest":
		*t = TierSuggest
	case "warn":
		*t = TierWarn
	case "block":
		*t = TierBlock
	default:
		return fmt.Errorf("unknown tier %q", text)
	}
	return nil
}

// Thresholds are the three ascending tier boundaries in estimated tokens.
// A value exactly at a boundary does not escalate.
type Thresholds struct {
	Suggest int64 `json:"suggest" yaml:"suggest" toml:"suggest"`
	Warn    int64 `json:"warn" yaml:"warn" toml:"warn"`
	Block   int64 `json:"block" yaml:"block" toml:"block"`
}

// DefaultThresholds returns the built-in tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Suggest: DefaultSuggestTokens,
		Warn:    DefaultWarnTokens,
		Block:   DefaultBlockTokens,
	}
}

// Validate reports whether the thresholds are positive and strictly ascending.
func (t Thresholds) Validate() error {
	if t.Suggest <= 0 {
		return fmt.Errorf("suggest threshold must be > 0, got %d", t.Suggest)
	}
	if t.Warn <= t.Suggest {
		return fmt.Errorf("warn threshold (%d) must exceed suggest threshold (%d)", t.Warn, t.Suggest)
	}
	if t.Block <= t.Warn {
		return fmt.Errorf("block threshold (%d) must exceed warn threshold (%d)", t.Block, t.Warn)
	}
	return nil
}

// TierFor returns the highest tier whose threshold is strictly exceeded.
func (t Thresholds) TierFor(estimatedTokens int64) Tier {
	switch {
	case estimatedTokens > t.Block:
		return TierBlock
	case estimatedTokens > t.Warn:
		return TierWarn
	case estimatedTokens > t.Suggest:
		return TierSuggest
	default:
		return TierNormal
	}
}

// LargeFile controls the single-read size guard.
type LargeFile struct {
	WarnBytes     int64 `json:"warn_bytes" yaml:"warn_bytes" toml:"warn_bytes"`
	BlockBytes    int64 `json:"block_bytes" yaml:"block_bytes" toml:"block_bytes"`
	MaxReadTokens int64 `json:"max_read_tokens" yaml:"max_read_tokens" toml:"max_read_tokens"`
}

// DefaultLargeFile returns the built-in single-read limits.
func DefaultLargeFile() LargeFile {
	return LargeFile{
		WarnBytes:     LargeFileWarnBytes,
		BlockBytes:    LargeFileBlockBytes,
		MaxReadTokens: MaxReadTokens,
	}
}
