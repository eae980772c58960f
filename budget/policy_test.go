package budget

import (
	"testing"

	"ctxguard/limits"
)

// stateWithTokens builds a state whose estimate is exactly tokens, spread
// over reads that trigger the grep-first rule.
func stateWithTokens(tokens int64, reads int) State {
	s := NewState()
	total := tokens * limits.BytesPerToken
	for i := 0; i < reads; i++ {
		size := total / int64(reads)
		if i == reads-1 {
			size = total - size*int64(reads-1)
		}
		s = Accumulate(s, NewItem("/d"+string(rune('a'+i))+"/f", size))
	}
	return s
}

func TestEvaluateTiers(t *testing.T) {
	tests := []struct {
		tokens   int64
		tier     limits.Tier
		advisory Advisory
	}{
		{75_000, limits.TierNormal, AdvisoryNone},
		{75_001, limits.TierSuggest, AdvisoryLine},
		{100_001, limits.TierWarn, AdvisoryFull},
		{150_001, limits.TierBlock, AdvisoryFull},
	}
	for _, tt := range tests {
		v := DefaultPolicy().Evaluate(stateWithTokens(tt.tokens, 10))
		if v.Tier != tt.tier {
			t.Errorf("tokens=%d: tier %s, want %s", tt.tokens, v.Tier, tt.tier)
		}
		if v.Advisory != tt.advisory {
			t.Errorf("tokens=%d: advisory %d, want %d", tt.tokens, v.Advisory, tt.advisory)
		}
		if v.EstimatedTokens != tt.tokens {
			t.Errorf("tokens=%d: estimated %d", tt.tokens, v.EstimatedTokens)
		}
		if !v.Proceed {
			t.Errorf("tokens=%d: default policy must allow", tt.tokens)
		}
	}
}

func TestEvaluateSuggestNeedsStrategy(t *testing.T) {
	// Three reads: nothing actionable, so the suggest tier stays quiet.
	v := DefaultPolicy().Evaluate(stateWithTokens(80_000, 3))
	if v.Tier != limits.TierSuggest {
		t.Fatalf("tier = %s, want suggest", v.Tier)
	}
	if v.Advisory != AdvisoryNone {
		t.Errorf("suggest tier without a strategy should be silent, got %d", v.Advisory)
	}
}

func TestEvaluateHardBlockGate(t *testing.T) {
	s := stateWithTokens(150_001, 2)

	off := DefaultPolicy()
	if v := off.Evaluate(s); !v.Proceed || v.Tier != limits.TierBlock {
		t.Errorf("hard block off: want proceed at block tier, got %+v", v)
	}

	on := DefaultPolicy()
	on.BlockAtLimit = true
	if v := on.Evaluate(s); v.Proceed {
		t.Error("hard block on: block tier must deny")
	}

	if v := on.Evaluate(stateWithTokens(150_000, 2)); !v.Proceed {
		t.Error("hard block on: exactly at the block threshold must still allow")
	}
}

func TestEvaluateCustomThresholds(t *testing.T) {
	p := Policy{Thresholds: limits.Thresholds{Suggest: 10, Warn: 20, Block: 30}}
	if v := p.Evaluate(stateWithTokens(21, 1)); v.Tier != limits.TierWarn {
		t.Errorf("tier = %s, want warn", v.Tier)
	}
}
