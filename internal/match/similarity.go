package match

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// maxInexactScore keeps 1.0 reserved for exact normalized equality.
	maxInexactScore = 0.99

	charWeight  = 0.55
	tokenWeight = 0.45

	// Query-side coverage dominates: a query word missing from the
	// candidate costs more than an extra qualifier word in the candidate.
	queryCoverageWeight     = 0.75
	candidateCoverageWeight = 0.25

	containsBonus   = 0.15
	coverageBonus   = 0.10
	prefixBonus     = 0.05
	prefixBonusSize = 5
)

// Similarity scores two normalized strings in [0,1]. The score blends a
// character-level ratio (Levenshtein and Jaro-Winkler, whichever is
// kinder) with asymmetric token coverage, plus substring and prefix
// bonuses. 1.0 is returned only for exact equality; everything else is
// capped just below it. Deterministic: no randomness, no external state.
func Similarity(query, candidate string) float64 {
	if query == "" || candidate == "" {
		return 0
	}
	if query == candidate {
		return 1
	}

	char := levenshteinRatio(query, candidate)
	if jw := matchr.JaroWinkler(query, candidate, false); jw > char {
		char = jw
	}

	queryTokens := strings.Fields(query)
	candidateTokens := strings.Fields(candidate)
	shared := sharedTokenCount(queryTokens, candidateTokens)

	var queryCoverage, candidateCoverage float64
	if len(queryTokens) > 0 {
		queryCoverage = float64(shared) / float64(len(queryTokens))
	}
	if len(candidateTokens) > 0 {
		candidateCoverage = float64(shared) / float64(len(candidateTokens))
	}
	token := queryCoverageWeight*queryCoverage + candidateCoverageWeight*candidateCoverage

	score := charWeight*char + tokenWeight*token

	switch {
	case strings.Contains(candidate, query) || strings.Contains(query, candidate):
		score += containsBonus
	case queryCoverage == 1:
		score += coverageBonus
	}
	if sharedPrefix(query, candidate, prefixBonusSize) {
		score += prefixBonus
	}

	// Full query coverage means the candidate only adds qualifier words;
	// keep such candidates firmly above looser character-level matches.
	if queryCoverage == 1 && len(queryTokens) > 0 {
		if floor := 0.75 + 0.25*candidateCoverage; floor > score {
			score = floor
		}
	}

	if score > maxInexactScore {
		score = maxInexactScore
	}
	if score < 0 {
		score = 0
	}
	return score
}

func levenshteinRatio(a, b string) float64 {
	longest := len([]rune(a))
	if lb := len([]rune(b)); lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	distance := matchr.Levenshtein(a, b)
	ratio := 1 - float64(distance)/float64(longest)
	if ratio < 0 {
		return 0
	}
	return ratio
}

func sharedTokenCount(query, candidate []string) int {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}
	candidateSet := make(map[string]struct{}, len(candidate))
	for _, token := range candidate {
		candidateSet[token] = struct{}{}
	}
	shared := 0
	for _, token := range query {
		if _, ok := candidateSet[token]; ok {
			shared++
		}
	}
	return shared
}

func sharedPrefix(a, b string, size int) bool {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < size || len(rb) < size {
		return false
	}
	for i := 0; i < size; i++ {
		if ra[i] != rb[i] {
			return false
		}
	}
	return true
}
