package dedup

import (
	"context"
	"sort"
	"strings"
	"time"

	"assisted-venue-dedup/internal/domain"
	"assisted-venue-dedup/internal/matcher"
	"assisted-venue-dedup/internal/models"
	"assisted-venue-dedup/internal/spatial"
	errs "assisted-venue-dedup/pkg/errors"
	"assisted-venue-dedup/pkg/events"
	"assisted-venue-dedup/pkg/logging"
	"assisted-venue-dedup/pkg/metrics"
)

// Config carries the tunable bounds for detection. Threshold policy itself
// lives in internal/matcher and is not configurable.
type Config struct {
	// MaxDistanceM caps how far apart two venues may sit and still be
	// compared. Pairs with a known distance beyond this are skipped.
	MaxDistanceM float64
	// DefaultMinSim applies when no distance tier does: missing
	// coordinates or distance beyond the far tier.
	DefaultMinSim float64
	// RowLimit bounds how many venues a single locality scan loads.
	RowLimit int
	// CandidateRadiusM and CandidateLimit bound per-venue candidate
	// generation.
	CandidateRadiusM float64
	CandidateLimit   int
}

// Service implements duplicate detection: candidate generation, pairwise
// matching, cluster building and city-level reporting. Detection never
// mutates the catalog; merging lives in internal/merge.
type Service struct {
	repo     domain.Repository
	provider spatial.Provider
	store    events.EventStore
	logger   *logging.ComponentLogger
	cfg      Config

	scansTotal *metrics.Counter
	pairsTotal *metrics.Counter
	scanTime   *metrics.Histogram
}

func NewService(repo domain.Repository, provider spatial.Provider, store events.EventStore, logger *logging.Logger, cfg Config) *Service {
	if store == nil {
		store = events.NopStore{}
	}
	return &Service{
		repo:     repo,
		provider: provider,
		store:    store,
		logger:   logger.WithComponent("dedup"),
		cfg:      cfg,
		scansTotal: metrics.Default.Counter("dedup_scans_total",
			"Number of locality duplicate scans performed"),
		pairsTotal: metrics.Default.Counter("dedup_pairs_found_total",
			"Number of qualifying duplicate pairs found across scans"),
		scanTime: metrics.Default.Histogram("dedup_scan_duration_seconds",
			"Locality scan duration", []float64{0.01, 0.05, 0.1, 0.5, 1, 5}),
	}
}

// Candidate is one potential duplicate of a probe venue. DistanceM is nil
// when the candidate was found by name within the locality rather than by
// radius (the probe or candidate lacks coordinates, or the spatial backend
// was unavailable).
type Candidate struct {
	Venue      models.Venue `json:"venue"`
	Similarity float64      `json:"similarity"`
	DistanceM  *float64     `json:"distance_m,omitempty"`
}

// FindCandidates returns potential duplicates of one venue: venues in the
// same locality grouping within the candidate radius, plus name-similar
// venues without coordinates. radiusM and limit fall back to configured
// defaults when non-positive.
//
// A failing spatial backend degrades to a locality-wide name scan instead
// of failing the request; candidate listing feeds admin UIs where partial
// answers beat errors.
func (s *Service) FindCandidates(ctx context.Context, venueID int64, radiusM float64, limit int) ([]Candidate, error) {
	if venueID <= 0 {
		return nil, errs.NewInvalid("FindCandidates", "venue ID must be positive", nil)
	}
	if radiusM < 0 {
		return nil, errs.NewInvalid("FindCandidates", "radius must not be negative", nil)
	}
	if limit < 0 {
		return nil, errs.NewInvalid("FindCandidates", "limit must not be negative", nil)
	}
	if radiusM == 0 {
		radiusM = s.cfg.CandidateRadiusM
	}
	if limit == 0 {
		limit = s.cfg.CandidateLimit
	}

	probe, err := s.repo.GetVenueByIDCtx(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, errs.NewNotFound("FindCandidates", "venue not found", nil)
	}

	pool, degraded, err := s.candidatePool(ctx, *probe, radiusM)
	if err != nil {
		return nil, err
	}
	if degraded {
		s.logger.Warn("spatial lookup degraded to locality scan",
			logging.Int64("venue_id", venueID))
	}

	excluded, err := s.excludedSet(ctx, venueID)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, v := range pool {
		if v.ID == probe.ID {
			continue
		}
		if _, skip := excluded[v.ID]; skip {
			continue
		}
		// Bit-identical coordinates are a shared locality-center geocoding
		// fallback, not evidence of a match.
		if probe.SameCoords(v) {
			continue
		}
		dist := spatial.PairDistance(*probe, v)
		if dist != nil && *dist > radiusM {
			continue
		}
		sim := matcher.Similarity(probe.Name, v.Name)
		// Keep anything close by regardless of name; keep name matches
		// regardless of missing coordinates.
		if dist == nil && sim < matcher.MinimumSimilarity(nil, s.cfg.DefaultMinSim) {
			continue
		}
		out = append(out, Candidate{Venue: v, Similarity: sim, DistanceM: dist})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		di, dj := out[i].DistanceM, out[j].DistanceM
		if di != nil && dj != nil && *di != *dj {
			return *di < *dj
		}
		if (di == nil) != (dj == nil) {
			return di != nil
		}
		return out[i].Venue.ID < out[j].Venue.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// candidatePool gathers venues to compare the probe against. With
// coordinates it tries the spatial provider first and falls back to the
// probe's locality on provider failure; without coordinates it goes
// straight to the locality.
func (s *Service) candidatePool(ctx context.Context, probe models.Venue, radiusM float64) ([]models.Venue, bool, error) {
	if probe.HasCoords() {
		pool, err := s.provider.NearbyVenuesCtx(ctx, *probe.Lat, *probe.Lng,
			[]string{probe.LocalityPath}, radiusM, s.cfg.RowLimit)
		if err == nil {
			// Venues without coordinates never come back from a radius
			// query; pull them in from the locality so geocoding gaps
			// don't hide duplicates.
			rest, lerr := s.repo.GetVenuesByLocalityCtx(ctx, probe.LocalityPath)
			if lerr != nil {
				return nil, false, lerr
			}
			for _, v := range rest {
				if !v.HasCoords() {
					pool = append(pool, v)
				}
			}
			return pool, false, nil
		}
		s.logger.Error("spatial provider query failed", err,
			logging.Int64("venue_id", probe.ID))
	}
	pool, err := s.repo.GetVenuesByLocalityCtx(ctx, probe.LocalityPath)
	if err != nil {
		return nil, false, err
	}
	return pool, probe.HasCoords(), nil
}

func (s *Service) excludedSet(ctx context.Context, venueID int64) (map[int64]struct{}, error) {
	partners, err := s.repo.GetExcludedPartnersCtx(ctx, venueID)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(partners))
	for _, id := range partners {
		set[id] = struct{}{}
	}
	return set, nil
}

// ScanOptions tunes a locality scan. Zero values mean configured defaults.
type ScanOptions struct {
	// MinSimilarity overrides the default fallback minimum. It does not
	// override the distance tiers.
	MinSimilarity *float64
	// Limit caps the number of returned pairs after sorting.
	Limit int
}

// FindPairs scans the given locality groupings and returns every
// qualifying duplicate pair, ordered by similarity descending, then
// distance ascending (unknown distances last), then venue IDs. Venues from
// all listed localities form one comparison pool, so pairs straddling a
// locality boundary still surface. Excluded pairs are suppressed. Matching
// is non-transitive: each pair qualifies on its own evidence only.
func (s *Service) FindPairs(ctx context.Context, localityPaths []string, opts ScanOptions) ([]models.DuplicatePair, error) {
	if len(localityPaths) == 0 {
		return nil, errs.NewInvalid("FindPairs", "at least one locality path is required", nil)
	}
	for _, p := range localityPaths {
		if strings.TrimSpace(p) == "" {
			return nil, errs.NewInvalid("FindPairs", "locality path must not be empty", nil)
		}
	}
	minSim := s.cfg.DefaultMinSim
	if opts.MinSimilarity != nil {
		if *opts.MinSimilarity < 0 || *opts.MinSimilarity > 1 {
			return nil, errs.NewInvalid("FindPairs", "minimum similarity must be within [0, 1]", nil)
		}
		minSim = *opts.MinSimilarity
	}

	started := time.Now()
	venues, err := s.repo.GetVenuesByLocalitiesCtx(ctx, localityPaths, s.cfg.RowLimit)
	if err != nil {
		return nil, err
	}

	pairs, err := s.pairwise(ctx, venues, minSim, s.cfg.MaxDistanceM)
	if err != nil {
		return nil, err
	}
	sortPairs(pairs)
	if opts.Limit > 0 && len(pairs) > opts.Limit {
		pairs = pairs[:opts.Limit]
	}

	elapsed := time.Since(started)
	s.scansTotal.Inc(1)
	s.pairsTotal.Inc(int64(len(pairs)))
	s.scanTime.Observe(elapsed.Seconds())
	s.logger.Info("locality scan completed",
		logging.String("locality", strings.Join(localityPaths, ",")),
		logging.Int("venues", len(venues)),
		logging.Int("pairs", len(pairs)),
		logging.Duration("elapsed", elapsed))
	s.emit(ctx, events.ScanCompleted{
		Base:         events.Base{Ts: time.Now()},
		LocalityPath: strings.Join(localityPaths, ","),
		VenuesSeen:   len(venues),
		PairsFound:   len(pairs),
		DurationMs:   elapsed.Milliseconds(),
	})
	return pairs, nil
}

// pairwise compares every venue pair in the slice and keeps the qualifying
// ones. Exclusions for the whole venue set are loaded once up front.
func (s *Service) pairwise(ctx context.Context, venues []models.Venue, defaultMinSim, maxDistanceM float64) ([]models.DuplicatePair, error) {
	if len(venues) < 2 {
		return []models.DuplicatePair{}, nil
	}
	ids := make([]int64, len(venues))
	for i, v := range venues {
		ids[i] = v.ID
	}
	exclusions, err := s.repo.GetExclusionsForVenuesCtx(ctx, ids)
	if err != nil {
		return nil, err
	}
	excluded := make(map[models.PairKey]struct{}, len(exclusions))
	for _, e := range exclusions {
		excluded[models.CanonicalPairKey(e.VenueID1, e.VenueID2)] = struct{}{}
	}

	pairs := []models.DuplicatePair{}
	for i := 0; i < len(venues); i++ {
		for j := i + 1; j < len(venues); j++ {
			a, b := venues[i], venues[j]
			if _, skip := excluded[models.CanonicalPairKey(a.ID, b.ID)]; skip {
				continue
			}
			if a.SameCoords(b) {
				continue
			}
			dist := spatial.PairDistance(a, b)
			if dist != nil && *dist > maxDistanceM {
				continue
			}
			sim := matcher.Similarity(a.Name, b.Name)
			if sim < matcher.MinimumSimilarity(dist, defaultMinSim) {
				continue
			}
			p := models.NewDuplicatePair(a.ID, b.ID, sim, dist)
			p.Confidence = matcher.PairConfidence(sim, dist)
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

func sortPairs(pairs []models.DuplicatePair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Similarity != pairs[j].Similarity {
			return pairs[i].Similarity > pairs[j].Similarity
		}
		di, dj := pairs[i].DistanceM, pairs[j].DistanceM
		if di != nil && dj != nil && *di != *dj {
			return *di < *dj
		}
		if (di == nil) != (dj == nil) {
			return di != nil
		}
		if pairs[i].VenueID1 != pairs[j].VenueID1 {
			return pairs[i].VenueID1 < pairs[j].VenueID1
		}
		return pairs[i].VenueID2 < pairs[j].VenueID2
	})
}

func (s *Service) emit(ctx context.Context, ev events.Event) {
	if err := s.store.Append(ctx, ev); err != nil {
		s.logger.Warn("event append failed", logging.String("type", ev.Type()), logging.Error(err))
	}
}
