package spatial

import (
	"context"
	"errors"
	"math"
	"testing"

	"assisted-venue-dedup/internal/models"
)

func fptr(v float64) *float64 { return &v }

func TestDistanceZero(t *testing.T) {
	if d := Distance(40.7128, -74.0060, 40.7128, -74.0060); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}
}

func TestDistanceKnownPoints(t *testing.T) {
	// One degree of latitude is about 111.2 km.
	d := Distance(40.0, -74.0, 41.0, -74.0)
	if math.Abs(d-111195) > 200 {
		t.Fatalf("one degree of latitude = %vm, want ~111195m", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	ab := Distance(40.7128, -74.0060, 40.7306, -73.9866)
	ba := Distance(40.7306, -73.9866, 40.7128, -74.0060)
	if math.Abs(ab-ba) > 1e-6 {
		t.Fatalf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestPairDistanceNilWithoutCoords(t *testing.T) {
	a := models.Venue{ID: 1, Lat: fptr(40.7), Lng: fptr(-74.0)}
	b := models.Venue{ID: 2}
	if got := PairDistance(a, b); got != nil {
		t.Fatalf("PairDistance with missing coords = %v, want nil", *got)
	}
	if got := PairDistance(a, a); got == nil || *got != 0 {
		t.Fatalf("PairDistance to self should be 0")
	}
}

func TestMemoryProviderFiltersAndOrders(t *testing.T) {
	lp := "north-america|us|ny|new-york|manhattan"
	venues := []models.Venue{
		{ID: 3, Name: "Far", LocalityPath: lp, Lat: fptr(40.7), Lng: fptr(-74.01)},
		{ID: 1, Name: "Near", LocalityPath: lp, Lat: fptr(40.70001), Lng: fptr(-74.0)},
		{ID: 2, Name: "Other city", LocalityPath: "europe|fr|idf|paris|paris", Lat: fptr(40.70001), Lng: fptr(-74.0)},
		{ID: 4, Name: "No coords", LocalityPath: lp},
	}
	p := &MemoryProvider{Venues: venues}

	got, err := p.NearbyVenuesCtx(context.Background(), 40.7, -74.0, []string{lp}, 2000, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d venues, want 2", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("wrong order: got IDs %d, %d", got[0].ID, got[1].ID)
	}
}

func TestMemoryProviderLimit(t *testing.T) {
	lp := "north-america|us|ny|new-york|manhattan"
	var venues []models.Venue
	for i := int64(1); i <= 5; i++ {
		venues = append(venues, models.Venue{ID: i, LocalityPath: lp, Lat: fptr(40.7), Lng: fptr(-74.0)})
	}
	p := &MemoryProvider{Venues: venues}
	got, err := p.NearbyVenuesCtx(context.Background(), 40.7, -74.0, []string{lp}, 100, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("limit not applied: got %d venues", len(got))
	}
	// Equal distances fall back to ID order.
	if got[0].ID != 1 || got[1].ID != 2 || got[2].ID != 3 {
		t.Fatalf("tie-break by ID broken: %d, %d, %d", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestMemoryProviderErr(t *testing.T) {
	boom := errors.New("spatial backend down")
	p := &MemoryProvider{Err: boom}
	if _, err := p.NearbyVenuesCtx(context.Background(), 0, 0, []string{"x"}, 100, 1); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
}
