package quote

import "testing"

func TestMatchTarget(t *testing.T) {
	items := []Item{
		{Description: "Toilet Install"},
		{Description: "Shower Valve"},
		{Description: "Shut-off Valve Replacement"},
	}

	tests := []struct {
		name   string
		target string
		kind   MatchKind
		index  int
	}{
		{"unique single word", "toilet", UniqueMatch, 0},
		{"case insensitive", "TOILET", UniqueMatch, 0},
		{"ambiguous keyword", "valve", AmbiguousMatch, -1},
		{"multi word narrows", "shower valve", UniqueMatch, 1},
		{"no match", "skylight", NoMatch, -1},
		{"blank target", "   ", NoMatch, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MatchTarget(items, tt.target)
			if result.Kind != tt.kind {
				t.Errorf("MatchTarget(%q) kind = %v, want %v", tt.target, result.Kind, tt.kind)
			}
			if result.Index != tt.index {
				t.Errorf("MatchTarget(%q) index = %d, want %d", tt.target, result.Index, tt.index)
			}
		})
	}
}

func TestMatchTargetCandidates(t *testing.T) {
	items := []Item{
		{Description: "Shower Valve"},
		{Description: "Shut-off Valve"},
	}
	result := MatchTarget(items, "valve")
	if len(result.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %v", result.Candidates)
	}
}
