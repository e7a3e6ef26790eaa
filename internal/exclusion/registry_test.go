package exclusion

import (
	"context"
	"testing"

	"assisted-venue-dedup/internal/models"
	testutil "assisted-venue-dedup/internal/testing"
	errs "assisted-venue-dedup/pkg/errors"
	"assisted-venue-dedup/pkg/events"
	"assisted-venue-dedup/pkg/logging"
)

func newTestRegistry(t *testing.T, venues ...models.Venue) (*Registry, *testutil.MockRepository, *testutil.MockEventStore) {
	t.Helper()
	repo := testutil.NewMockRepository(venues...)
	store := &testutil.MockEventStore{}
	logger, err := logging.NewLogger(logging.LogConfig{Level: logging.LevelError, Format: "text", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewRegistry(repo, store, logger), repo, store
}

func venue(id int64, name string) models.Venue {
	return models.Venue{ID: id, Name: name, LocalityPath: "north-america|us|ny|new-york|manhattan"}
}

func TestExcludeStoresCanonicalOrder(t *testing.T) {
	reg, repo, _ := newTestRegistry(t, venue(10, "Blue Note"), venue(3, "The Blue Note"))

	rec, err := reg.Exclude(context.Background(), 10, 3, nil, nil)
	if err != nil {
		t.Fatalf("Exclude: %v", err)
	}
	if rec.VenueID1 != 3 || rec.VenueID2 != 10 {
		t.Fatalf("stored pair (%d, %d), want canonical (3, 10)", rec.VenueID1, rec.VenueID2)
	}
	if _, ok := repo.Exclusions[models.PairKey{A: 3, B: 10}]; !ok {
		t.Fatalf("exclusion not persisted under canonical key")
	}
}

func TestExcludeRejectsSelfPair(t *testing.T) {
	reg, _, _ := newTestRegistry(t, venue(1, "Blue Note"))
	if _, err := reg.Exclude(context.Background(), 1, 1, nil, nil); !errs.Is(err, errs.ErrInvalid) {
		t.Fatalf("self pair: got %v, want invalid argument", err)
	}
	if _, err := reg.Exclude(context.Background(), 0, 1, nil, nil); !errs.Is(err, errs.ErrInvalid) {
		t.Fatalf("zero ID: got %v, want invalid argument", err)
	}
}

func TestExcludeUnknownVenue(t *testing.T) {
	reg, _, _ := newTestRegistry(t, venue(1, "Blue Note"))
	if _, err := reg.Exclude(context.Background(), 1, 99, nil, nil); !errs.Is(err, errs.ErrNotFound) {
		t.Fatalf("unknown venue: got %v, want not found", err)
	}
}

func TestExcludeTwiceConflicts(t *testing.T) {
	reg, _, _ := newTestRegistry(t, venue(1, "Blue Note"), venue(2, "The Blue Note"))
	ctx := context.Background()
	if _, err := reg.Exclude(ctx, 1, 2, nil, nil); err != nil {
		t.Fatalf("first Exclude: %v", err)
	}
	// Reversed order hits the same canonical record.
	if _, err := reg.Exclude(ctx, 2, 1, nil, nil); !errs.Is(err, errs.ErrConstraint) {
		t.Fatalf("second Exclude: got %v, want constraint violation", err)
	}
}

func TestIsExcludedEitherOrder(t *testing.T) {
	reg, _, _ := newTestRegistry(t, venue(1, "Blue Note"), venue(2, "The Blue Note"))
	ctx := context.Background()
	if _, err := reg.Exclude(ctx, 2, 1, nil, nil); err != nil {
		t.Fatalf("Exclude: %v", err)
	}
	for _, pair := range [][2]int64{{1, 2}, {2, 1}} {
		got, err := reg.IsExcluded(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("IsExcluded(%v): %v", pair, err)
		}
		if !got {
			t.Fatalf("IsExcluded(%v) = false, want true", pair)
		}
	}
	got, err := reg.IsExcluded(ctx, 1, 3)
	if err != nil || got {
		t.Fatalf("IsExcluded(1, 3) = %v, %v; want false, nil", got, err)
	}
}

func TestExcludedPartners(t *testing.T) {
	reg, _, _ := newTestRegistry(t, venue(1, "A"), venue(2, "B"), venue(3, "C"))
	ctx := context.Background()
	if _, err := reg.Exclude(ctx, 2, 1, nil, nil); err != nil {
		t.Fatalf("Exclude: %v", err)
	}
	if _, err := reg.Exclude(ctx, 2, 3, nil, nil); err != nil {
		t.Fatalf("Exclude: %v", err)
	}
	partners, err := reg.ExcludedPartners(ctx, 2)
	if err != nil {
		t.Fatalf("ExcludedPartners: %v", err)
	}
	if len(partners) != 2 || partners[0] != 1 || partners[1] != 3 {
		t.Fatalf("partners = %v, want [1 3]", partners)
	}
}

func TestRemoveExclusion(t *testing.T) {
	reg, _, _ := newTestRegistry(t, venue(1, "A"), venue(2, "B"))
	ctx := context.Background()
	if _, err := reg.Exclude(ctx, 1, 2, nil, nil); err != nil {
		t.Fatalf("Exclude: %v", err)
	}
	if err := reg.Remove(ctx, 2, 1, nil); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	excluded, err := reg.IsExcluded(ctx, 1, 2)
	if err != nil || excluded {
		t.Fatalf("pair still excluded after Remove")
	}
	if err := reg.Remove(ctx, 1, 2, nil); !errs.Is(err, errs.ErrNotFound) {
		t.Fatalf("removing absent exclusion: got %v, want not found", err)
	}
}

func TestExclusionEventsEmitted(t *testing.T) {
	reg, _, store := newTestRegistry(t, venue(1, "A"), venue(2, "B"))
	ctx := context.Background()
	if _, err := reg.Exclude(ctx, 2, 1, nil, nil); err != nil {
		t.Fatalf("Exclude: %v", err)
	}
	if err := reg.Remove(ctx, 1, 2, nil); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	types := store.Types()
	if len(types) != 2 || types[0] != events.TypePairExcluded || types[1] != events.TypeExclusionRemoved {
		t.Fatalf("event types = %v", types)
	}
}
