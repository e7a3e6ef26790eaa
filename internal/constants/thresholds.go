package constants

// Centralized threshold values used across the dedup engine.
// Keep these stable; change deliberately and document why.
// These are not configuration knobs; use pkg/config for env-driven settings.

const (
	// Tiered minimum-similarity policy: closer pairs need weaker name
	// evidence to qualify. Distances in meters; boundaries are half-open
	// [lo, hi).
	TierCloseDistanceM = 50.0
	TierMidDistanceM   = 100.0
	TierFarDistanceM   = 200.0
	TierCloseMinSim    = 0.30
	TierMidMinSim      = 0.40
	TierFarMinSim      = 0.45

	// Distance weight tiers for confidence scoring.
	WeightTier1DistanceM = 20.0
	WeightTier2DistanceM = 50.0
	WeightTier3DistanceM = 100.0
	WeightTier4DistanceM = 200.0
	WeightTier5DistanceM = 500.0
	WeightTier1          = 1.0
	WeightTier2          = 0.95
	WeightTier3          = 0.85
	WeightTier4          = 0.70
	WeightTier5          = 0.50
	WeightFloor          = 0.30

	// Pair confidence blend: similarity dominates, proximity corroborates.
	PairSimilarityWeight = 0.7
	PairDistanceWeight   = 0.3

	// Similarity scorer
	SubstringMinLength  = 3    // shorter names make containment meaningless
	SubstringSimFloor   = 0.5  // floor applied when one name contains the other
	AbbreviationJWFloor = 0.92 // Jaro-Winkler score treated as abbreviation evidence

	// Severity classification for city reports
	HighConfidencePair     = 0.8
	CriticalHighConfPairs  = 5
	CriticalAffectedEvents = 100
	WarningHighConfPairs   = 2
	WarningUniqueVenues    = 10

	// Strict thresholds for the duplicate count aggregator (search surface)
	AggregatorMaxDistanceM  = 100.0
	AggregatorMinSimilarity = 0.6
)
