package dedup

import (
	"context"

	"assisted-venue-dedup/internal/constants"
	"assisted-venue-dedup/internal/matcher"
	"assisted-venue-dedup/internal/models"
	"assisted-venue-dedup/internal/spatial"
	errs "assisted-venue-dedup/pkg/errors"
)

// BatchDuplicateCounts returns the number of likely duplicates per venue
// for a search surface. Thresholds here are stricter than detection:
// counting is shown to end users, so only pairs under 100 meters with
// strong name evidence (similarity >= 0.6 or a containment relation)
// count. The result carries an explicit zero for every requested venue,
// including unknown IDs; a missing entry would read as "not computed"
// rather than "no duplicates".
//
// All venues are fetched set-based: one query for the requested venues and
// one for their locality peers, never one query per venue.
func (s *Service) BatchDuplicateCounts(ctx context.Context, venueIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(venueIDs))
	for _, id := range venueIDs {
		counts[id] = 0
	}
	if len(venueIDs) == 0 {
		return counts, nil
	}
	for _, id := range venueIDs {
		if id <= 0 {
			return nil, errs.NewInvalid("BatchDuplicateCounts", "venue IDs must be positive", nil)
		}
	}

	probes, err := s.repo.GetVenuesByIDsCtx(ctx, venueIDs)
	if err != nil {
		return nil, err
	}
	if len(probes) == 0 {
		return counts, nil
	}

	localitySet := map[string]struct{}{}
	for _, v := range probes {
		localitySet[v.LocalityPath] = struct{}{}
	}
	localities := make([]string, 0, len(localitySet))
	for lp := range localitySet {
		localities = append(localities, lp)
	}
	peers, err := s.repo.GetVenuesByLocalitiesCtx(ctx, localities, 0)
	if err != nil {
		return nil, err
	}

	peerIDs := make([]int64, len(peers))
	for i, v := range peers {
		peerIDs[i] = v.ID
	}
	exclusions, err := s.repo.GetExclusionsForVenuesCtx(ctx, peerIDs)
	if err != nil {
		return nil, err
	}
	excluded := make(map[models.PairKey]struct{}, len(exclusions))
	for _, e := range exclusions {
		excluded[models.CanonicalPairKey(e.VenueID1, e.VenueID2)] = struct{}{}
	}

	peersByLocality := map[string][]models.Venue{}
	for _, v := range peers {
		peersByLocality[v.LocalityPath] = append(peersByLocality[v.LocalityPath], v)
	}

	for _, probe := range probes {
		n := 0
		for _, peer := range peersByLocality[probe.LocalityPath] {
			if peer.ID == probe.ID {
				continue
			}
			if _, skip := excluded[models.CanonicalPairKey(probe.ID, peer.ID)]; skip {
				continue
			}
			if isStrictDuplicate(probe, peer) {
				n++
			}
		}
		counts[probe.ID] = n
	}
	return counts, nil
}

// DuplicateCount is the single-venue convenience over BatchDuplicateCounts.
// Unknown venues are a not-found error here; the batch form deliberately
// reports them as zero instead.
func (s *Service) DuplicateCount(ctx context.Context, venueID int64) (int, error) {
	v, err := s.repo.GetVenueByIDCtx(ctx, venueID)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, errs.NewNotFound("DuplicateCount", "venue not found", nil)
	}
	counts, err := s.BatchDuplicateCounts(ctx, []int64{venueID})
	if err != nil {
		return 0, err
	}
	return counts[venueID], nil
}

// isStrictDuplicate applies the aggregator thresholds: both venues must
// have coordinates under 100 meters apart, and the names must either score
// at least 0.6 or stand in a containment relation.
func isStrictDuplicate(a, b models.Venue) bool {
	if a.SameCoords(b) {
		return false
	}
	dist := spatial.PairDistance(a, b)
	if dist == nil || *dist >= constants.AggregatorMaxDistanceM {
		return false
	}
	if matcher.Similarity(a.Name, b.Name) >= constants.AggregatorMinSimilarity {
		return true
	}
	return matcher.HasSubstringRelation(a.Name, b.Name)
}
