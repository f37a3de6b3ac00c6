package text

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Closest returns the candidate nearest to target for "did you mean"
// hints, or "" when nothing is close.
func Closest(target string, candidates []string) string {
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		best := ranks[0]
		for _, rank := range ranks[1:] {
			if rank.Distance < best.Distance {
				best = rank
			}
		}
		return best.Target
	}

	// RankFindFold only matches candidates containing every rune of
	// target in order, so a misspelling longer than the intended word
	// is matched the other way round.
	bestTarget, bestDistance := "", -1
	for _, c := range candidates {
		if !fuzzy.MatchFold(c, target) {
			continue
		}
		d := fuzzy.LevenshteinDistance(strings.ToLower(c), strings.ToLower(target))
		if bestDistance < 0 || d < bestDistance {
			bestTarget, bestDistance = c, d
		}
	}
	return bestTarget
}
