package spatial

import (
	"context"
	"math"
	"sort"

	"assisted-venue-dedup/internal/models"
	"assisted-venue-dedup/pkg/database"
)

const earthRadiusM = 6371000

// Provider answers proximity queries over the venue catalog. The production
// implementation pushes the haversine into SQL; tests use MemoryProvider.
type Provider interface {
	// NearbyVenuesCtx returns venues with coordinates within radiusM meters
	// of the given point, restricted to the given locality groupings,
	// ordered by distance then ID.
	NearbyVenuesCtx(ctx context.Context, lat, lng float64, localityPaths []string, radiusM float64, limit int) ([]models.Venue, error)
}

// Distance returns the haversine great-circle distance in meters.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// PairDistance returns the distance between two venues, or nil when either
// venue has no coordinates. Missing coordinates are common for venues that
// failed geocoding; they must not break pairing.
func PairDistance(a, b models.Venue) *float64 {
	if !a.HasCoords() || !b.HasCoords() {
		return nil
	}
	d := Distance(*a.Lat, *a.Lng, *b.Lat, *b.Lng)
	return &d
}

// SQLProvider runs radius queries against MySQL.
type SQLProvider struct {
	db *database.DB
}

func NewSQLProvider(db *database.DB) *SQLProvider {
	return &SQLProvider{db: db}
}

var _ Provider = (*SQLProvider)(nil)

func (p *SQLProvider) NearbyVenuesCtx(ctx context.Context, lat, lng float64, localityPaths []string, radiusM float64, limit int) ([]models.Venue, error) {
	return p.db.GetVenuesInRadiusCtx(ctx, lat, lng, localityPaths, radiusM, limit)
}

// MemoryProvider serves radius queries from an in-memory venue slice.
// It mirrors SQLProvider's ordering so tests exercise the same contract.
type MemoryProvider struct {
	Venues []models.Venue
	// Err, when set, is returned by every query. Lets tests simulate an
	// unavailable spatial backend.
	Err error
}

var _ Provider = (*MemoryProvider)(nil)

func (p *MemoryProvider) NearbyVenuesCtx(ctx context.Context, lat, lng float64, localityPaths []string, radiusM float64, limit int) ([]models.Venue, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	paths := make(map[string]struct{}, len(localityPaths))
	for _, lp := range localityPaths {
		paths[lp] = struct{}{}
	}

	type scored struct {
		venue models.Venue
		dist  float64
	}
	var hits []scored
	for _, v := range p.Venues {
		if _, ok := paths[v.LocalityPath]; !ok {
			continue
		}
		if !v.HasCoords() {
			continue
		}
		d := Distance(lat, lng, *v.Lat, *v.Lng)
		if d <= radiusM {
			hits = append(hits, scored{venue: v, dist: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].venue.ID < hits[j].venue.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]models.Venue, len(hits))
	for i, h := range hits {
		out[i] = h.venue
	}
	return out, nil
}
