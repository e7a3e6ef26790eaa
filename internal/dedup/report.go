package dedup

import (
	"context"
	"time"

	"assisted-venue-dedup/internal/constants"
	"assisted-venue-dedup/internal/models"
)

// CityReport summarizes duplicate pressure for one locality grouping and
// classifies its severity so operators can triage cities instead of
// eyeballing raw pair lists.
func (s *Service) CityReport(ctx context.Context, localityPath string) (*models.CityDuplicateReport, error) {
	pairs, err := s.FindPairs(ctx, []string{localityPath}, ScanOptions{})
	if err != nil {
		return nil, err
	}

	involved := map[int64]struct{}{}
	highConf := 0
	for _, p := range pairs {
		involved[p.VenueID1] = struct{}{}
		involved[p.VenueID2] = struct{}{}
		if p.Confidence >= constants.HighConfidencePair {
			highConf++
		}
	}

	ids := make([]int64, 0, len(involved))
	for id := range involved {
		ids = append(ids, id)
	}
	counts, err := s.repo.BatchEventCountsCtx(ctx, ids)
	if err != nil {
		return nil, err
	}
	affectedEvents := 0
	for _, c := range counts {
		affectedEvents += c
	}

	return &models.CityDuplicateReport{
		LocalityPath:   localityPath,
		Pairs:          pairs,
		HighConfidence: highConf,
		UniqueVenues:   len(involved),
		AffectedEvents: affectedEvents,
		Severity:       classifySeverity(highConf, len(involved), affectedEvents),
		GeneratedAt:    time.Now(),
	}, nil
}

// classifySeverity buckets a locality by duplicate pressure. Critical and
// warning are each reachable through either volume of strong evidence or
// breadth of impact.
func classifySeverity(highConf, uniqueVenues, affectedEvents int) string {
	switch {
	case highConf >= constants.CriticalHighConfPairs || affectedEvents >= constants.CriticalAffectedEvents:
		return models.SeverityCritical
	case highConf >= constants.WarningHighConfPairs || uniqueVenues >= constants.WarningUniqueVenues:
		return models.SeverityWarning
	default:
		return models.SeverityHealthy
	}
}
