package geocode

import (
	"context"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"assisted-venue-dedup/internal/constants"
	"assisted-venue-dedup/internal/domain"
	"assisted-venue-dedup/pkg/circuit"
	errs "assisted-venue-dedup/pkg/errors"
	"assisted-venue-dedup/pkg/geography"
	"assisted-venue-dedup/pkg/logging"
)

// ReverseGeocoder resolves coordinates to a locality grouping path.
type ReverseGeocoder interface {
	LocalityPathFor(ctx context.Context, lat, lng float64) (string, error)
}

// GoogleGeocoder reverse-geocodes through the Google Maps API, rate-limited
// and behind a circuit breaker. The Maps quota is shared with other jobs,
// so the limiter stays deliberately conservative.
type GoogleGeocoder struct {
	client  *maps.Client
	limiter *rate.Limiter
	breaker *circuit.Breaker
	logger  *logging.ComponentLogger
}

func NewGoogleGeocoder(apiKey string, ratePerSecond float64, logger *logging.Logger) (*GoogleGeocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, errs.NewProvider("NewGoogleGeocoder", "googlemaps", "failed to create client", err)
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	breaker := circuit.New(circuit.Config{
		Name:              "google_geocoder",
		OperationTimeout:  constants.GeocodeOperationTimeout,
		OpenFor:           constants.GeocodeOpenFor,
		MaxConsecFailures: 5,
		WindowSize:        20,
		FailureRate:       constants.CircuitFailureRate,
		SlowCallThreshold: constants.GeocodeSlowCallThreshold,
		SlowCallRate:      constants.CircuitSlowCallRate,
	}, logger)
	return &GoogleGeocoder{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), constants.GeocodeRateBurst),
		breaker: breaker,
		logger:  logger.WithComponent("geocode"),
	}, nil
}

var _ ReverseGeocoder = (*GoogleGeocoder)(nil)

func (g *GoogleGeocoder) LocalityPathFor(ctx context.Context, lat, lng float64) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", errs.NewProvider("LocalityPathFor", "googlemaps", "rate limiter interrupted", err)
	}

	var path string
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
			LatLng: &maps.LatLng{Lat: lat, Lng: lng},
		})
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return errs.NewNotFound("LocalityPathFor", "no geocoding result for coordinates", nil)
		}
		path = geography.GenerateLocalityPath(results[0].AddressComponents)
		return nil
	}, nil)
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			return "", err
		}
		return "", errs.NewProvider("LocalityPathFor", "googlemaps", "reverse geocode failed", err)
	}
	if path == "" {
		return "", errs.NewNotFound("LocalityPathFor", "geocoding result has no usable components", nil)
	}
	return path, nil
}

// Backfiller repairs venues whose locality grouping is missing or stale.
// Locality paths partition the duplicate search space; a venue with a bad
// path is invisible to detection.
type Backfiller struct {
	repo     domain.Repository
	geocoder ReverseGeocoder
	logger   *logging.ComponentLogger
}

func NewBackfiller(repo domain.Repository, geocoder ReverseGeocoder, logger *logging.Logger) *Backfiller {
	return &Backfiller{
		repo:     repo,
		geocoder: geocoder,
		logger:   logger.WithComponent("backfill"),
	}
}

// BackfillVenue recomputes and stores the locality path for one venue.
// Returns the new path. Venues without coordinates cannot be backfilled.
func (b *Backfiller) BackfillVenue(ctx context.Context, venueID int64) (string, error) {
	if venueID <= 0 {
		return "", errs.NewInvalid("BackfillVenue", "venue ID must be positive", nil)
	}
	v, err := b.repo.GetVenueByIDCtx(ctx, venueID)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", errs.NewNotFound("BackfillVenue", "venue not found", nil)
	}
	if !v.HasCoords() {
		return "", errs.NewInvalid("BackfillVenue", "venue has no coordinates to geocode", nil)
	}

	path, err := b.geocoder.LocalityPathFor(ctx, *v.Lat, *v.Lng)
	if err != nil {
		return "", err
	}
	if path == v.LocalityPath {
		// Already correct; skip the write.
		return path, nil
	}
	slug := geography.Slugify(v.Name)
	if err := b.repo.UpdateVenueLocalityCtx(ctx, venueID, path, slug); err != nil {
		return "", err
	}
	b.logger.Info("venue locality backfilled",
		logging.Int64("venue_id", venueID),
		logging.String("old", v.LocalityPath),
		logging.String("new", path))
	return path, nil
}
