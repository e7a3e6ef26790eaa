package models

import (
	"time"
)

// Venue is a catalog entry for a physical place. Many rows arrive from
// independent ingestion sources, so near-duplicates are expected and are
// resolved by the dedup engine rather than at write time.
type Venue struct {
	ID           int64             `json:"id" db:"id"`
	Name         string            `json:"name" db:"name"`
	Address      string            `json:"address" db:"address"`
	Slug         string            `json:"slug" db:"slug"`
	LocalityPath string            `json:"locality_path" db:"locality_path"`
	Lat          *float64          `json:"lat" db:"lat"`
	Lng          *float64          `json:"lng" db:"lng"`
	ProviderIDs  map[string]string `json:"provider_ids" db:"provider_ids"`
	CreatedAt    *time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    *time.Time        `json:"updated_at" db:"updated_at"`
}

// HasCoords reports whether both coordinates are present.
func (v Venue) HasCoords() bool { return v.Lat != nil && v.Lng != nil }

// SameCoords reports whether both venues carry bit-identical coordinates.
// Identical coordinates are almost always a locality-center geocoding
// fallback shared by unrelated venues, not evidence of a match.
func (v Venue) SameCoords(o Venue) bool {
	if !v.HasCoords() || !o.HasCoords() {
		return false
	}
	return *v.Lat == *o.Lat && *v.Lng == *o.Lng
}
