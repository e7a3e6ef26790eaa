package models

import "time"

// DuplicatePair is a computed (never persisted) duplicate candidate.
// The pair is unordered; VenueID1 < VenueID2 always holds so a pair has
// exactly one representation.
type DuplicatePair struct {
	VenueID1   int64    `json:"venue_id_1"`
	VenueID2   int64    `json:"venue_id_2"`
	Similarity float64  `json:"similarity"`
	DistanceM  *float64 `json:"distance_m,omitempty"` // nil when either venue lacks coordinates
	Confidence float64  `json:"confidence"`
}

// NewDuplicatePair builds a pair in canonical order.
func NewDuplicatePair(a, b int64, similarity float64, distanceM *float64) DuplicatePair {
	if b < a {
		a, b = b, a
	}
	return DuplicatePair{VenueID1: a, VenueID2: b, Similarity: similarity, DistanceM: distanceM}
}

// Involves reports whether the pair references the given venue.
func (p DuplicatePair) Involves(id int64) bool { return p.VenueID1 == id || p.VenueID2 == id }

// Other returns the partner of id within the pair; ok is false when the
// pair does not involve id.
func (p DuplicatePair) Other(id int64) (int64, bool) {
	switch id {
	case p.VenueID1:
		return p.VenueID2, true
	case p.VenueID2:
		return p.VenueID1, true
	}
	return 0, false
}

// DuplicateGroup is a connected component of venues reachable through a
// chain of qualifying pairs. A group always has at least two members.
type DuplicateGroup struct {
	VenueIDs   []int64         `json:"venue_ids"` // sorted ascending
	Pairs      []DuplicatePair `json:"pairs"`     // every intra-component pair, canonical order
	Confidence float64         `json:"confidence"`
}

// ExclusionRecord is a persisted "not a duplicate" marker. Stored in
// canonical order (VenueID1 < VenueID2) so lookups are a single equality
// check; at most one record exists per pair.
type ExclusionRecord struct {
	VenueID1  int64     `json:"venue_id_1" db:"venue_id_1"`
	VenueID2  int64     `json:"venue_id_2" db:"venue_id_2"`
	AdminID   *int      `json:"admin_id,omitempty" db:"admin_id"`
	Reason    *string   `json:"reason,omitempty" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PairKey is a canonical map key for an unordered venue pair.
type PairKey struct {
	A int64
	B int64
}

// CanonicalPairKey returns the key with the smaller identity first.
func CanonicalPairKey(a, b int64) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// Severity levels for a city-level duplicate report.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityHealthy  = "healthy"
)

// CityDuplicateReport aggregates duplicate pressure for one locality.
type CityDuplicateReport struct {
	LocalityPath   string          `json:"locality_path"`
	Pairs          []DuplicatePair `json:"pairs"`
	HighConfidence int             `json:"high_confidence_pairs"`
	UniqueVenues   int             `json:"unique_venues"`
	AffectedEvents int             `json:"affected_events"`
	Severity       string          `json:"severity"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
