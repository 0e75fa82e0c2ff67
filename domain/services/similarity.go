package services

import "coredetect/domain/core/valueobjects"

// SimilarityScorer compares two sets of users
type SimilarityScorer interface {
	Score(a, b valueobjects.UserIDSet) float64
}

// JaccardScorer scores sets by the Jaccard index
type JaccardScorer struct{}

// Score implements SimilarityScorer
func (JaccardScorer) Score(a, b valueobjects.UserIDSet) float64 {
	return JaccardSimilarity(a, b)
}

// JaccardSimilarity calculates |A ∩ B| / |A ∪ B|. Two empty sets score 0.
func JaccardSimilarity(a, b valueobjects.UserIDSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0.0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	intersection := 0
	for id := range small {
		if large.Contains(id) {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
