package matcher

import "assisted-venue-dedup/internal/constants"

// MinimumSimilarity returns the similarity a pair must reach to count as a
// duplicate, given the distance between the venues in meters. The policy is
// a step function over half-open tiers [lo, hi): nearby venues need weaker
// name evidence, far venues need stronger. A nil distance (either venue has
// no coordinates) falls back to the caller-supplied default.
func MinimumSimilarity(distanceM *float64, defaultMinSim float64) float64 {
	if distanceM == nil {
		return defaultMinSim
	}
	d := *distanceM
	switch {
	case d < constants.TierCloseDistanceM:
		return constants.TierCloseMinSim
	case d < constants.TierMidDistanceM:
		return constants.TierMidMinSim
	case d < constants.TierFarDistanceM:
		return constants.TierFarMinSim
	default:
		return defaultMinSim
	}
}

// DistanceWeight maps a pair distance to a multiplicative confidence weight.
// Closer pairs corroborate a name match more strongly. A nil distance gets
// the floor weight: missing coordinates are treated as weakly corroborating,
// never as disqualifying.
func DistanceWeight(distanceM *float64) float64 {
	if distanceM == nil {
		return constants.WeightFloor
	}
	d := *distanceM
	switch {
	case d < constants.WeightTier1DistanceM:
		return constants.WeightTier1
	case d < constants.WeightTier2DistanceM:
		return constants.WeightTier2
	case d < constants.WeightTier3DistanceM:
		return constants.WeightTier3
	case d < constants.WeightTier4DistanceM:
		return constants.WeightTier4
	case d < constants.WeightTier5DistanceM:
		return constants.WeightTier5
	default:
		return constants.WeightFloor
	}
}
