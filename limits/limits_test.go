package limits

import "testing"

func TestTierForBoundaries(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		tokens int64
		want   Tier
	}{
		{0, TierNormal},
		{75_000, TierNormal},
		{75_001, TierSuggest},
		{100_000, TierSuggest},
		{100_001, TierWarn},
		{150_000, TierWarn},
		{150_001, TierBlock},
		{10_000_000, TierBlock},
	}
	for _, tt := range tests {
		if got := th.TierFor(tt.tokens); got != tt.want {
			t.Errorf("TierFor(%d) = %s, want %s", tt.tokens, got, tt.want)
		}
	}
}

func TestTierOrdering(t *testing.T) {
	if !(TierNormal < TierSuggest && TierSuggest < TierWarn && TierWarn < TierBlock) {
		t.Fatal("tiers must be totally ordered normal < suggest < warn < block")
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("default thresholds should be valid: %v", err)
	}

	bad := []Thresholds{
		{Suggest: 0, Warn: 10, Block: 20},
		{Suggest: 10, Warn: 10, Block: 20},
		{Suggest: 10, Warn: 20, Block: 15},
	}
	for _, th := range bad {
		if err := th.Validate(); err == nil {
			t.Errorf("expected %+v to be rejected", th)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		bytes int64
		want  int64
	}{
		{-5, 0},
		{0, 0},
		{3, 0},
		{4, 1},
		{300_004, 75_001},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.bytes); got != tt.want {
			t.Errorf("EstimateTokens(%d) = %d, want %d", tt.bytes, got, tt.want)
		}
	}
}

func TestTierString(t *testing.T) {
	names := map[Tier]string{
		TierNormal:  "normal",
		TierSuggest: "suggest",
		TierWarn:    "warn",
		TierBlock:   "block",
	}
	for tier, want := range names {
		if tier.String() != want {
			t.Errorf("Tier(%d).String() = %q, want %q", tier, tier.String(), want)
		}
	}
}

func TestTierTextRoundTrip(t *testing.T) {
	for _, tier := range []Tier{TierNormal, TierSuggest, TierWarn, TierBlock} {
		text, _ := tier.MarshalText()
		var got Tier
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if got != tier {
			t.Errorf("round trip of %v gave %v", tier, got)
		}
	}
	var bad Tier
	if err := bad.UnmarshalText([]byte("critical")); err == nil {
		t.Error("expected error for unknown tier name")
	}
}
