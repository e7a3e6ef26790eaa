package dedup

import (
	"context"
	"sort"

	"assisted-venue-dedup/internal/matcher"
	"assisted-venue-dedup/internal/models"
)

// BuildClusters groups the qualifying pairs of the scanned localities into
// connected components: venues linked through any chain of pairs land in
// one group. Pairing is non-transitive, so a group may contain member pairs
// that did not individually qualify; only qualifying pairs are attached to
// the group. Output is deterministic: groups ordered by smallest member ID,
// members sorted ascending, pairs in canonical order.
func (s *Service) BuildClusters(ctx context.Context, localityPaths []string, opts ScanOptions) ([]models.DuplicateGroup, error) {
	pairs, err := s.FindPairs(ctx, localityPaths, ScanOptions{MinSimilarity: opts.MinSimilarity})
	if err != nil {
		return nil, err
	}
	groups := clusterPairs(pairs)
	if opts.Limit > 0 && len(groups) > opts.Limit {
		groups = groups[:opts.Limit]
	}
	return groups, nil
}

// clusterPairs computes connected components over the pair graph. The
// traversal visits venue IDs in ascending order with sorted adjacency
// lists, so the same pair set always yields byte-identical output.
func clusterPairs(pairs []models.DuplicatePair) []models.DuplicateGroup {
	adj := map[int64][]int64{}
	pairsByKey := map[models.PairKey]models.DuplicatePair{}
	for _, p := range pairs {
		adj[p.VenueID1] = append(adj[p.VenueID1], p.VenueID2)
		adj[p.VenueID2] = append(adj[p.VenueID2], p.VenueID1)
		pairsByKey[models.CanonicalPairKey(p.VenueID1, p.VenueID2)] = p
	}

	roots := make([]int64, 0, len(adj))
	for id := range adj {
		roots = append(roots, id)
		sort.Slice(adj[id], func(i, j int) bool { return adj[id][i] < adj[id][j] })
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	seen := map[int64]struct{}{}
	groups := []models.DuplicateGroup{}
	for _, root := range roots {
		if _, ok := seen[root]; ok {
			continue
		}
		members := walkComponent(root, adj, seen)
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

		var memberPairs []models.DuplicatePair
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				if p, ok := pairsByKey[models.CanonicalPairKey(members[i], members[j])]; ok {
					memberPairs = append(memberPairs, p)
				}
			}
		}
		groups = append(groups, models.DuplicateGroup{
			VenueIDs:   members,
			Pairs:      memberPairs,
			Confidence: matcher.GroupConfidence(memberPairs),
		})
	}
	return groups
}

// walkComponent is an iterative DFS; recursion depth over a big locality
// could get uncomfortable.
func walkComponent(root int64, adj map[int64][]int64, seen map[int64]struct{}) []int64 {
	var members []int64
	stack := []int64{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
		// Push in reverse so smaller neighbors pop first.
		neighbors := adj[id]
		for i := len(neighbors) - 1; i >= 0; i-- {
			if _, ok := seen[neighbors[i]]; !ok {
				stack = append(stack, neighbors[i])
			}
		}
	}
	return members
}
