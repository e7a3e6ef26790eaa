package matcher

import (
	"assisted-venue-dedup/internal/constants"
	"assisted-venue-dedup/internal/models"
)

// PairConfidence blends name similarity with a distance weight:
//
//	confidence = similarity*0.7 + weight*0.3
//
// Similarity carries most of the signal; proximity corroborates it. The
// result stays in [0, 1] because both inputs do.
func PairConfidence(similarity float64, distanceM *float64) float64 {
	w := DistanceWeight(distanceM)
	return similarity*constants.PairSimilarityWeight + w*constants.PairDistanceWeight
}

// GroupConfidence scores a duplicate group as the mean of similarity*weight
// over its member pairs. Note this is deliberately NOT the mean of
// PairConfidence: multiplying instead of blending punishes groups held
// together by far-apart pairs much harder, which is the conservative choice
// for anything that could feed an automated merge.
func GroupConfidence(pairs []models.DuplicatePair) float64 {
	if len(pairs) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pairs {
		sum += p.Similarity * DistanceWeight(p.DistanceM)
	}
	return sum / float64(len(pairs))
}
