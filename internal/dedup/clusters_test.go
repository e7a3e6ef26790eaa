package dedup

import (
	"context"
	"reflect"
	"testing"
)

// Chain fixture: 1 pairs with 2, 2 pairs with 3, but 1 and 3 are neither
// name-similar nor close enough to pair directly.
func chainService(t *testing.T) *Service {
	t.Helper()
	svc, _, _ := newTestService(t,
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note Jazz Club", 45),
		venueAt(3, "Jazz Club Downtown", 75),
	)
	return svc
}

func TestMatchingIsNotTransitive(t *testing.T) {
	svc := chainService(t)
	pairs, err := svc.FindPairs(context.Background(), []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	if !hasPair(pairs, 1, 2) || !hasPair(pairs, 2, 3) {
		t.Fatalf("chain pairs missing: %v", pairs)
	}
	if hasPair(pairs, 1, 3) {
		t.Fatalf("pair (1, 3) qualified transitively; each pair must stand on its own evidence")
	}
}

func TestBuildClustersChainsIntoOneGroup(t *testing.T) {
	svc := chainService(t)
	groups, err := svc.BuildClusters(context.Background(), []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	g := groups[0]
	if !reflect.DeepEqual(g.VenueIDs, []int64{1, 2, 3}) {
		t.Fatalf("group members = %v, want [1 2 3]", g.VenueIDs)
	}
	// Only the qualifying pairs attach to the group; (1, 3) is absent.
	if len(g.Pairs) != 2 {
		t.Fatalf("group has %d pairs, want 2", len(g.Pairs))
	}
	for _, p := range g.Pairs {
		if p.VenueID1 == 1 && p.VenueID2 == 3 {
			t.Fatalf("non-qualifying pair (1, 3) attached to group")
		}
	}
	if g.Confidence <= 0 || g.Confidence > 1 {
		t.Fatalf("group confidence = %v, out of (0, 1]", g.Confidence)
	}
}

func TestBuildClustersSeparateComponents(t *testing.T) {
	svc, _, _ := newTestService(t,
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note", 10),
		venueAt(7, "Webster Hall", 400),
		venueAt(8, "Webster Hall", 410),
	)
	groups, err := svc.BuildClusters(context.Background(), []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	// Groups ordered by smallest member.
	if !reflect.DeepEqual(groups[0].VenueIDs, []int64{1, 2}) {
		t.Fatalf("first group = %v, want [1 2]", groups[0].VenueIDs)
	}
	if !reflect.DeepEqual(groups[1].VenueIDs, []int64{7, 8}) {
		t.Fatalf("second group = %v, want [7 8]", groups[1].VenueIDs)
	}
}

func TestBuildClustersDeterministic(t *testing.T) {
	svc := chainService(t)
	ctx := context.Background()
	first, err := svc.BuildClusters(ctx, []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := svc.BuildClusters(ctx, []string{testLocality}, ScanOptions{})
		if err != nil {
			t.Fatalf("BuildClusters: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("cluster output differs between runs:\n%v\nvs\n%v", first, again)
		}
	}
}

func TestBuildClustersEmptyLocality(t *testing.T) {
	svc, _, _ := newTestService(t)
	groups, err := svc.BuildClusters(context.Background(), []string{testLocality}, ScanOptions{})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("got %d groups for empty locality, want 0", len(groups))
	}
}
