package domain

import "time"

// MergeAuditRecord is the append-only trail of a venue merge. It is created
// inside the same transaction that performs the merge and is the only
// surviving record of the deleted source venue.
type MergeAuditRecord struct {
	ID               int64          `json:"id" db:"id"`
	SourceVenueID    int64          `json:"source_venue_id" db:"source_venue_id"`
	TargetVenueID    int64          `json:"target_venue_id" db:"target_venue_id"`
	AdminID          *int           `json:"admin_id,omitempty" db:"admin_id"`
	Reason           string         `json:"reason" db:"reason"`
	Similarity       *float64       `json:"similarity,omitempty" db:"similarity"`
	DistanceM        *float64       `json:"distance_m,omitempty" db:"distance_m"`
	ReassignedCounts map[string]int `json:"reassigned_counts" db:"reassigned_counts"`
	SourceSnapshot   string         `json:"source_snapshot" db:"source_snapshot"` // JSON of the source venue at merge time
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// TotalReassigned sums reassigned dependent rows across entity types.
func (r MergeAuditRecord) TotalReassigned() int {
	total := 0
	for _, n := range r.ReassignedCounts {
		total += n
	}
	return total
}
