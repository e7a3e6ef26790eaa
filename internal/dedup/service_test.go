package dedup

import (
	"context"
	"math"
	"testing"

	"assisted-venue-dedup/internal/models"
	"assisted-venue-dedup/internal/spatial"
	testutil "assisted-venue-dedup/internal/testing"
	errs "assisted-venue-dedup/pkg/errors"
	"assisted-venue-dedup/pkg/events"
	"assisted-venue-dedup/pkg/logging"
)

const testLocality = "north-america|us|ny|new-york|manhattan"

func fptr(v float64) *float64 { return &v }

// latOffset returns the latitude delta that puts a point d meters north of
// the base latitude under the haversine used in production.
func latOffset(d float64) float64 {
	return d * 180 / (math.Pi * 6371000)
}

func venueAt(id int64, name string, northM float64) models.Venue {
	lat := 40.7 + latOffset(northM)
	lng := -74.0
	return models.Venue{
		ID:           id,
		Name:         name,
		LocalityPath: testLocality,
		Lat:          &lat,
		Lng:          &lng,
	}
}

func venueNoCoords(id int64, name string) models.Venue {
	return models.Venue{ID: id, Name: name, LocalityPath: testLocality}
}

func testConfig() Config {
	return Config{
		MaxDistanceM:     500,
		DefaultMinSim:    0.35,
		RowLimit:         500,
		CandidateRadiusM: 200,
		CandidateLimit:   25,
	}
}

func newTestService(t *testing.T, venues ...models.Venue) (*Service, *testutil.MockRepository, *testutil.MockEventStore) {
	t.Helper()
	repo := testutil.NewMockRepository(venues...)
	provider := &spatial.MemoryProvider{Venues: venues}
	store := &testutil.MockEventStore{}
	logger, err := logging.NewLogger(logging.LogConfig{Level: logging.LevelError, Format: "text", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewService(repo, provider, store, logger, testConfig()), repo, store
}

func findPair(t *testing.T, pairs []models.DuplicatePair, a, b int64) models.DuplicatePair {
	t.Helper()
	key := models.CanonicalPairKey(a, b)
	for _, p := range pairs {
		if p.VenueID1 == key.A && p.VenueID2 == key.B {
			return p
		}
	}
	t.Fatalf("pair (%d, %d) not found in %v", a, b, pairs)
	return models.DuplicatePair{}
}

func hasPair(pairs []models.DuplicatePair, a, b int64) bool {
	key := models.CanonicalPairKey(a, b)
	for _, p := range pairs {
		if p.VenueID1 == key.A && p.VenueID2 == key.B {
			return true
		}
	}
	return false
}

func TestFindPairsValidatesInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.FindPairs(ctx, nil, ScanOptions{}); !errs.Is(err, errs.ErrInvalid) {
		t.Fatalf("no localities: got %v, want invalid argument", err)
	}
	if _, err := svc.FindPairs(ctx, []string{"  "}, ScanOptions{}); !errs.Is(err, errs.ErrInvalid) {
		t.Fatalf("blank locality: got %v, want invalid argument", err)
	}
	if _, err := svc.FindPairs(ctx, []string{testLocality}, ScanOptions{MinSimilarity: fptr(1.5)}); !errs.Is(err, errs.ErrInvalid) {
		t.Fatalf("out-of-range minimum: got %v, want invalid argument", err)
	}
	if _, err := svc.FindPairs(ctx, []string{testLocality}, ScanOptions{MinSimilarity: fptr(-0.1)}); !errs.Is(err, errs.ErrInvalid) {
		t.Fatalf("negative minimum: got %v, want invalid argument", err)
	}
}

func TestFindPairsContainedNames(t *testing.T) {
	// A venue name contained in another nearby venue's name is the classic
	// "Blue Note" vs "Blue Note Jazz Club" case: modest string scores, but
	// the containment floor keeps it above the close-tier minimum.
	svc, _, _ := newTestService(t,
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note Jazz Club", 45),
	)
	pairs, err := svc.FindPairs(context.Background(), []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	p := findPair(t, pairs, 1, 2)
	if p.Similarity < 0.5 {
		t.Fatalf("similarity = %v, want >= containment floor 0.5", p.Similarity)
	}
	if p.DistanceM == nil || math.Abs(*p.DistanceM-45) > 0.5 {
		t.Fatalf("distance = %v, want ~45m", p.DistanceM)
	}
	// 45m falls in the 0.95 weight tier.
	wantConf := p.Similarity*0.7 + 0.95*0.3
	if math.Abs(p.Confidence-wantConf) > 1e-9 {
		t.Fatalf("confidence = %v, want %v", p.Confidence, wantConf)
	}
}

func TestFindPairsTierBoundary(t *testing.T) {
	// "Velvet Club" vs "Club Six" scores in [0.30, 0.40): enough for the
	// close tier, not enough once the pair crosses the 50m boundary.
	base := venueAt(1, "Velvet Club", 0)

	near, _, _ := newTestService(t, base, venueAt(2, "Club Six", 49.9))
	pairs, err := near.FindPairs(context.Background(), []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs near: %v", err)
	}
	p := findPair(t, pairs, 1, 2)
	if p.Similarity < 0.30 || p.Similarity >= 0.40 {
		t.Fatalf("fixture drifted: similarity = %v, want [0.30, 0.40)", p.Similarity)
	}

	far, _, _ := newTestService(t, base, venueAt(2, "Club Six", 50.1))
	pairs, err = far.FindPairs(context.Background(), []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs far: %v", err)
	}
	if hasPair(pairs, 1, 2) {
		t.Fatalf("pair beyond the close tier boundary should not qualify at similarity %v", p.Similarity)
	}
}

func TestFindPairsMaxDistanceCutoff(t *testing.T) {
	// Identical names, but 600m apart exceeds the comparison cap.
	svc, _, _ := newTestService(t,
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note", 600),
	)
	pairs, err := svc.FindPairs(context.Background(), []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("got %d pairs beyond the distance cap, want 0", len(pairs))
	}
}

func TestFindPairsMissingCoordinates(t *testing.T) {
	// A venue that failed geocoding still pairs by name under the default
	// minimum; the pair carries no distance.
	svc, _, _ := newTestService(t,
		venueAt(1, "Mercury Lounge", 0),
		venueNoCoords(2, "Mercury Lounge East"),
	)
	pairs, err := svc.FindPairs(context.Background(), []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	p := findPair(t, pairs, 1, 2)
	if p.DistanceM != nil {
		t.Fatalf("distance = %v, want nil for missing coordinates", *p.DistanceM)
	}
	// Missing distance gets the floor weight.
	wantConf := p.Similarity*0.7 + 0.30*0.3
	if math.Abs(p.Confidence-wantConf) > 1e-9 {
		t.Fatalf("confidence = %v, want %v", p.Confidence, wantConf)
	}
}

func TestFindPairsSuppressesExclusions(t *testing.T) {
	svc, repo, _ := newTestService(t,
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note Jazz Club", 45),
		venueAt(3, "The Blue Note", 20),
	)
	ctx := context.Background()
	// Stored in canonical order, looked up in either order.
	if err := repo.CreateExclusionCtx(ctx, &models.ExclusionRecord{VenueID1: 1, VenueID2: 2}); err != nil {
		t.Fatalf("CreateExclusionCtx: %v", err)
	}

	pairs, err := svc.FindPairs(ctx, []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	if hasPair(pairs, 1, 2) {
		t.Fatalf("excluded pair (1, 2) still reported")
	}
	// The exclusion is pairwise: (1, 3) and (2, 3) remain reportable.
	findPair(t, pairs, 1, 3)
	findPair(t, pairs, 2, 3)
}

func TestFindPairsOrdering(t *testing.T) {
	svc, _, _ := newTestService(t,
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note Jazz Club", 45),
		venueAt(3, "Blue Note", 30),
	)
	pairs, err := svc.FindPairs(context.Background(), []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	if len(pairs) < 2 {
		t.Fatalf("got %d pairs, want at least 2", len(pairs))
	}
	for i := 1; i < len(pairs); i++ {
		if pairs[i].Similarity > pairs[i-1].Similarity {
			t.Fatalf("pairs not sorted by similarity descending: %v after %v",
				pairs[i].Similarity, pairs[i-1].Similarity)
		}
	}
	// The exact-name pair (1, 3) sorts first.
	if pairs[0].VenueID1 != 1 || pairs[0].VenueID2 != 3 {
		t.Fatalf("strongest pair = (%d, %d), want (1, 3)", pairs[0].VenueID1, pairs[0].VenueID2)
	}
}

func TestFindPairsCanonicalPairOrder(t *testing.T) {
	svc, _, _ := newTestService(t,
		venueAt(9, "Blue Note", 0),
		venueAt(4, "Blue Note", 10),
	)
	pairs, err := svc.FindPairs(context.Background(), []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	p := findPair(t, pairs, 9, 4)
	if p.VenueID1 != 4 || p.VenueID2 != 9 {
		t.Fatalf("pair stored as (%d, %d), want canonical (4, 9)", p.VenueID1, p.VenueID2)
	}
}

func TestFindPairsEmitsScanEvent(t *testing.T) {
	svc, _, store := newTestService(t,
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note", 10),
	)
	if _, err := svc.FindPairs(context.Background(), []string{testLocality}, ScanOptions{}); err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	types := store.Types()
	if len(types) != 1 || types[0] != events.TypeScanCompleted {
		t.Fatalf("event types = %v, want one scan.completed", types)
	}
}

func TestFindCandidates(t *testing.T) {
	svc, _, _ := newTestService(t,
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note Jazz Club", 45),
		venueAt(3, "Webster Hall", 150), // nearby but unrelated name: still a candidate
		venueAt(4, "Blue Note", 5000),   // same name, far outside the radius
		venueNoCoords(5, "The Blue Note"),
	)
	got, err := svc.FindCandidates(context.Background(), 1, 200, 10)
	if err != nil {
		t.Fatalf("FindCandidates: %v", err)
	}
	ids := map[int64]bool{}
	for _, c := range got {
		ids[c.Venue.ID] = true
	}
	if !ids[2] || !ids[3] || !ids[5] {
		t.Fatalf("candidate IDs = %v, want 2, 3 and 5 present", ids)
	}
	if ids[4] {
		t.Fatalf("venue 4 outside the radius must not be a candidate")
	}
	if ids[1] {
		t.Fatalf("probe venue listed as its own candidate")
	}
}

func TestFindCandidatesUnknownVenue(t *testing.T) {
	svc, _, _ := newTestService(t, venueAt(1, "Blue Note", 0))
	if _, err := svc.FindCandidates(context.Background(), 42, 0, 0); !errs.Is(err, errs.ErrNotFound) {
		t.Fatalf("unknown venue: got %v, want not found", err)
	}
	if _, err := svc.FindCandidates(context.Background(), -1, 0, 0); !errs.Is(err, errs.ErrInvalid) {
		t.Fatalf("negative ID: got %v, want invalid argument", err)
	}
}

func TestFindCandidatesDegradesWhenSpatialFails(t *testing.T) {
	venues := []models.Venue{
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note Jazz Club", 45),
	}
	repo := testutil.NewMockRepository(venues...)
	provider := &spatial.MemoryProvider{Venues: venues, Err: errs.NewProvider("NearbyVenuesCtx", "spatial", "backend down", nil)}
	logger, err := logging.NewLogger(logging.LogConfig{Level: logging.LevelError, Format: "text", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	svc := NewService(repo, provider, nil, logger, testConfig())

	// The radius query fails; candidates still come back from the
	// locality name scan.
	got, err := svc.FindCandidates(context.Background(), 1, 200, 10)
	if err != nil {
		t.Fatalf("FindCandidates with dead spatial backend: %v", err)
	}
	if len(got) != 1 || got[0].Venue.ID != 2 {
		t.Fatalf("degraded candidates = %v, want venue 2 only", got)
	}
	if got[0].DistanceM == nil {
		t.Fatalf("degraded path still has both coordinate sets; distance should be computed")
	}
}

func TestFindCandidatesRespectsExclusions(t *testing.T) {
	svc, repo, _ := newTestService(t,
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note Jazz Club", 45),
	)
	ctx := context.Background()
	if err := repo.CreateExclusionCtx(ctx, &models.ExclusionRecord{VenueID1: 1, VenueID2: 2}); err != nil {
		t.Fatalf("CreateExclusionCtx: %v", err)
	}
	got, err := svc.FindCandidates(ctx, 1, 200, 10)
	if err != nil {
		t.Fatalf("FindCandidates: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("excluded partner still listed: %v", got)
	}
}

func TestScanCloseVariantPair(t *testing.T) {
	// Two records of the same club a few meters apart: "Blue Note" vs
	// "Blue Note Jazz Club".
	latA, lngA := 40.0, -73.0
	latB, lngB := 40.00005, -73.00004
	svc, _, _ := newTestService(t,
		models.Venue{ID: 1, Name: "Blue Note", LocalityPath: testLocality, Lat: &latA, Lng: &lngA},
		models.Venue{ID: 2, Name: "Blue Note Jazz Club", LocalityPath: testLocality, Lat: &latB, Lng: &lngB},
	)

	pairs, err := svc.FindPairs(context.Background(), []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	p := findPair(t, pairs, 1, 2)
	if p.DistanceM == nil || *p.DistanceM >= 20 {
		t.Fatalf("distance = %v, want a handful of meters", p.DistanceM)
	}
	if p.Similarity < 0.5 {
		t.Fatalf("similarity = %v, want >= 0.5 (contained name)", p.Similarity)
	}
	// Sub-20m distance carries full weight in the pair confidence.
	want := p.Similarity*0.7 + 0.3
	if math.Abs(p.Confidence-want) > 1e-9 {
		t.Fatalf("confidence = %v, want %v", p.Confidence, want)
	}
}

func TestScanDistantPairGatedByDefaultMinimum(t *testing.T) {
	// 300m apart the distance tiers no longer help; the caller's default
	// minimum decides. Fixture names score in [0.30, 0.40).
	svc, _, _ := newTestService(t,
		venueAt(1, "Velvet Club", 0),
		venueAt(2, "Club Six", 300),
	)
	ctx := context.Background()

	strict := 0.40
	pairs, err := svc.FindPairs(ctx, []string{testLocality}, ScanOptions{MinSimilarity: &strict})
	if err != nil {
		t.Fatalf("FindPairs strict: %v", err)
	}
	if hasPair(pairs, 1, 2) {
		t.Fatalf("pair qualified at 300m against a 0.40 default: %v", pairs)
	}

	loose := 0.30
	pairs, err = svc.FindPairs(ctx, []string{testLocality}, ScanOptions{MinSimilarity: &loose})
	if err != nil {
		t.Fatalf("FindPairs loose: %v", err)
	}
	if !hasPair(pairs, 1, 2) {
		t.Fatalf("pair missing at 300m with a 0.30 default: %v", pairs)
	}
}

func TestIdenticalCoordinatesNeverMatch(t *testing.T) {
	// Bit-identical coordinates are a locality-center geocoding fallback
	// shared by unrelated venues; the name evidence alone must not pair them.
	lat, lng := 40.7, -74.0
	svc, _, _ := newTestService(t,
		models.Venue{ID: 1, Name: "Blue Note", LocalityPath: testLocality, Lat: &lat, Lng: &lng},
		models.Venue{ID: 2, Name: "Blue Note", LocalityPath: testLocality, Lat: &lat, Lng: &lng},
	)
	ctx := context.Background()

	pairs, err := svc.FindPairs(ctx, []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	if hasPair(pairs, 1, 2) {
		t.Fatalf("identical-coordinate venues paired: %v", pairs)
	}

	candidates, err := svc.FindCandidates(ctx, 1, 200, 10)
	if err != nil {
		t.Fatalf("FindCandidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("identical-coordinate venue listed as candidate: %v", candidates)
	}

	counts, err := svc.BatchDuplicateCounts(ctx, []int64{1, 2})
	if err != nil {
		t.Fatalf("BatchDuplicateCounts: %v", err)
	}
	if counts[1] != 0 || counts[2] != 0 {
		t.Fatalf("identical-coordinate venues counted: %v", counts)
	}
}

func TestFindCandidatesRejectsNegativeParameters(t *testing.T) {
	svc, _, _ := newTestService(t, venueAt(1, "Blue Note", 0))
	ctx := context.Background()
	if _, err := svc.FindCandidates(ctx, 1, -5, 10); !errs.Is(err, errs.ErrInvalid) {
		t.Fatalf("negative radius: got %v, want invalid argument", err)
	}
	if _, err := svc.FindCandidates(ctx, 1, 200, -1); !errs.Is(err, errs.ErrInvalid) {
		t.Fatalf("negative limit: got %v, want invalid argument", err)
	}
}

func TestFindPairsSpansLocalities(t *testing.T) {
	// Adjacent localities scanned together form one comparison pool, so a
	// duplicate sitting just across the boundary still pairs.
	other := "north-america|us|ny|new-york|brooklyn"
	a := venueAt(1, "Blue Note", 0)
	b := venueAt(2, "Blue Note", 15)
	b.LocalityPath = other
	svc, _, _ := newTestService(t, a, b)
	ctx := context.Background()

	pairs, err := svc.FindPairs(ctx, []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("single-locality scan produced %v, want none", pairs)
	}

	pairs, err = svc.FindPairs(ctx, []string{testLocality, other}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	if !hasPair(pairs, 1, 2) {
		t.Fatalf("cross-locality pair missing from %v", pairs)
	}
}
