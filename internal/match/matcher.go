package match

import (
	"github.com/hbollon/go-edlib"
)

// MinScore is the similarity floor below which no candidate is accepted.
const MinScore = 0.55

// Result is the outcome of a fuzzy candidate match.
type Result struct {
	Index int     // index into the candidates slice
	Title string  // the matched candidate title
	Score float64 // Jaro-Winkler similarity (0.0-1.0)
}

// BestCandidate finds the candidate title closest to the wanted query.
// Uses Jaro-Winkler similarity which favors prefix matches (good for
// "Artist - Track" style titles). Returns ok=false when no candidate
// clears MinScore.
func BestCandidate(query string, candidates []string) (Result, bool) {
	normalizedQuery := CleanTitle(query)

	best := Result{Index: -1}
	for i, candidate := range candidates {
		normalizedCandidate := CleanTitle(candidate)
		score := float64(edlib.JaroWinklerSimilarity(normalizedQuery, normalizedCandidate))
		if score > best.Score {
			best = Result{Index: i, Title: candidate, Score: score}
		}
	}

	if best.Score < MinScore {
		return Result{Index: -1}, false
	}
	return best, true
}
