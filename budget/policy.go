package budget

import "ctxguard/limits"

// Advisory says how much guidance text a verdict carries.
type Advisory int

const (
	AdvisoryNone Advisory = iota
	// AdvisoryLine is a one-line strategy note.
	AdvisoryLine
	// AdvisoryFull is the complete guidance report.
	AdvisoryFull
)

// Verdict is the policy decision for one read.
type Verdict struct {
	Tier            limits.Tier `json:"tier"`
	EstimatedTokens int64       `json:"estimated_tokens"`
	Proceed         bool        `json:"proceed"`
	Advisory        Advisory    `json:"-"`
	Suggestion      Suggestion  `json:"suggestion"`

	// Filled in by the renderer.
	StopReason string `json:"stop_reason,omitempty"`
	Notice     string `json:"notice,omitempty"`
}

// Policy turns a cumulative budget into a verdict.
type Policy struct {
	Thresholds limits.Thresholds
	// BlockAtLimit denies reads past the block threshold. When false those
	// reads are allowed with a strongly worded notice.
	BlockAtLimit bool
}

// DefaultPolicy uses the built-in thresholds with hard blocking off.
func DefaultPolicy() Policy {
	return Policy{Thresholds: limits.DefaultThresholds()}
}

// Evaluate classifies s (which already includes the current read) and
// decides whether the read may proceed.
func (p Policy) Evaluate(s State) Verdict {
	tokens := s.EstimatedTokens()
	v := Verdict{
		Tier:            p.Thresholds.TierFor(tokens),
		EstimatedTokens: tokens,
		Proceed:         true,
	}

	switch v.Tier {
	case limits.TierBlock:
		v.Suggestion = Advise(s)
		v.Advisory = AdvisoryFull
		v.Proceed = !p.BlockAtLimit
	case limits.TierWarn:
		v.Suggestion = Advise(s)
		v.Advisory = AdvisoryFull
	case limits.TierSuggest:
		v.Suggestion = Advise(s)
		if v.Suggestion.Actionable() {
			v.Advisory = AdvisoryLine
		}
	}
	return v
}
