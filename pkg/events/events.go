package events

import (
	"context"
	"encoding/json"
	"time"
)

// Event is the base interface for dedup audit events.
// Keep payloads small, use JSON-friendly fields.
// Why: enables audit trails and offline analysis without coupling to a schema.
type Event interface {
	Type() string
	VenueID() int64
	Timestamp() time.Time
	Admin() *int
	MarshalData() ([]byte, error)
}

// Base contains common event metadata. VID is the primary venue the event
// is about (the surviving venue for merges).
type Base struct {
	Ts  time.Time `json:"ts"`
	VID int64     `json:"venue_id"`
	Adm *int      `json:"admin_id,omitempty"`
}

func (b Base) Timestamp() time.Time { return b.Ts }
func (b Base) VenueID() int64       { return b.VID }
func (b Base) Admin() *int          { return b.Adm }

const (
	TypeVenueMerged      = "venue.merged"
	TypePairExcluded     = "venue.pair.excluded"
	TypeExclusionRemoved = "venue.pair.exclusion_removed"
	TypeScanCompleted    = "dedup.scan.completed"
)

// VenueMerged is emitted after a merge transaction commits. VID is the
// surviving target venue.
type VenueMerged struct {
	Base
	SourceVenueID int64          `json:"source_venue_id"`
	Reason        string         `json:"reason,omitempty"`
	Similarity    *float64       `json:"similarity,omitempty"`
	DistanceM     *float64       `json:"distance_m,omitempty"`
	Reassigned    map[string]int `json:"reassigned,omitempty"`
}

func (e VenueMerged) Type() string                 { return TypeVenueMerged }
func (e VenueMerged) MarshalData() ([]byte, error) { return json.Marshal(e) }

// PairExcluded records that an admin marked a pair as not-a-duplicate.
// VID is the smaller venue ID of the canonical pair.
type PairExcluded struct {
	Base
	PartnerVenueID int64  `json:"partner_venue_id"`
	Reason         string `json:"reason,omitempty"`
}

func (e PairExcluded) Type() string                 { return TypePairExcluded }
func (e PairExcluded) MarshalData() ([]byte, error) { return json.Marshal(e) }

type ExclusionRemoved struct {
	Base
	PartnerVenueID int64 `json:"partner_venue_id"`
}

func (e ExclusionRemoved) Type() string                 { return TypeExclusionRemoved }
func (e ExclusionRemoved) MarshalData() ([]byte, error) { return json.Marshal(e) }

// ScanCompleted summarizes a locality-wide detection run. VID is zero;
// scans are about a locality, not a single venue.
type ScanCompleted struct {
	Base
	LocalityPath string `json:"locality_path"`
	VenuesSeen   int    `json:"venues_seen"`
	PairsFound   int    `json:"pairs_found"`
	DurationMs   int64  `json:"duration_ms"`
}

func (e ScanCompleted) Type() string                 { return TypeScanCompleted }
func (e ScanCompleted) MarshalData() ([]byte, error) { return json.Marshal(e) }

// EventStore defines persistence for dedup events.
// Implementations must guarantee per-venue ordering.
type EventStore interface {
	Append(ctx context.Context, ev ...Event) error
	ListByVenue(ctx context.Context, venueID int64) ([]StoredEvent, error)
}

// StoredEvent is a durable representation. Seq is a monotonic order within
// the DB (BIGINT AUTO_INCREMENT).
type StoredEvent struct {
	Seq     int64           `json:"seq"`
	VenueID int64           `json:"venue_id"`
	Type    string          `json:"type"`
	Ts      time.Time       `json:"ts"`
	AdminID *int            `json:"admin_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// NopStore discards events. Used in tests and when the events table is
// disabled.
type NopStore struct{}

func (NopStore) Append(ctx context.Context, ev ...Event) error { return nil }
func (NopStore) ListByVenue(ctx context.Context, venueID int64) ([]StoredEvent, error) {
	return nil, nil
}
