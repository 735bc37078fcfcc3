package quote

import "strings"

type MatchKind int

const (
	NoMatch MatchKind = iota
	UniqueMatch
	AmbiguousMatch
)

// MatchResult resolves a spoken target against the ledger. Ambiguity is
// reported, not resolved by picking the first hit, so the caller can ask a
// clarifying question.
type MatchResult struct {
	Kind       MatchKind
	Index      int
	Candidates []int
}

// MatchTarget finds ledger items whose description contains the target,
// case-insensitive. Multi-word targets match when every word appears.
func MatchTarget(items []Item, target string) MatchResult {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(target)))
	if len(words) == 0 {
		return MatchResult{Kind: NoMatch, Index: -1}
	}

	var candidates []int
	for i, it := range items {
		desc := strings.ToLower(it.Description)
		all := true
		for _, w := range words {
			if !strings.Contains(desc, w) {
				all = false
				break
			}
		}
		if all {
			candidates = append(candidates, i)
		}
	}

	switch len(candidates) {
	case 0:
		return MatchResult{Kind: NoMatch, Index: -1}
	case 1:
		return MatchResult{Kind: UniqueMatch, Index: candidates[0], Candidates: candidates}
	default:
		return MatchResult{Kind: AmbiguousMatch, Index: -1, Candidates: candidates}
	}
}
