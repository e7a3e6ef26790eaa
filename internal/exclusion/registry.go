package exclusion

import (
	"context"
	"time"

	"assisted-venue-dedup/internal/domain"
	"assisted-venue-dedup/internal/models"
	errs "assisted-venue-dedup/pkg/errors"
	"assisted-venue-dedup/pkg/events"
	"assisted-venue-dedup/pkg/logging"
)

// Registry manages persisted "not a duplicate" markers. An excluded pair is
// never reported by detection again until the exclusion is removed. Pairs
// are stored in canonical order (smaller ID first) so each pair has exactly
// one record regardless of argument order.
type Registry struct {
	repo   domain.Repository
	store  events.EventStore
	logger *logging.ComponentLogger
}

func NewRegistry(repo domain.Repository, store events.EventStore, logger *logging.Logger) *Registry {
	if store == nil {
		store = events.NopStore{}
	}
	return &Registry{
		repo:   repo,
		store:  store,
		logger: logger.WithComponent("exclusion"),
	}
}

// Exclude marks a pair as not-a-duplicate. Both venues must exist; a pair
// cannot be excluded against itself. Re-excluding an existing pair returns
// a constraint error so callers can surface a conflict rather than silently
// absorbing the duplicate request.
func (r *Registry) Exclude(ctx context.Context, venueID1, venueID2 int64, adminID *int, reason *string) (*models.ExclusionRecord, error) {
	if venueID1 <= 0 || venueID2 <= 0 {
		return nil, errs.NewInvalid("Exclude", "venue IDs must be positive", nil)
	}
	if venueID1 == venueID2 {
		return nil, errs.NewInvalid("Exclude", "cannot exclude a venue against itself", nil)
	}
	key := models.CanonicalPairKey(venueID1, venueID2)

	for _, id := range []int64{key.A, key.B} {
		v, err := r.repo.GetVenueByIDCtx(ctx, id)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, errs.NewNotFound("Exclude", "venue not found", nil)
		}
	}

	rec := &models.ExclusionRecord{
		VenueID1:  key.A,
		VenueID2:  key.B,
		AdminID:   adminID,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := r.repo.CreateExclusionCtx(ctx, rec); err != nil {
		return nil, err
	}

	r.logger.Info("pair excluded",
		logging.Int64("venue_id_1", key.A),
		logging.Int64("venue_id_2", key.B))
	r.emit(ctx, events.PairExcluded{
		Base:           events.Base{Ts: rec.CreatedAt, VID: key.A, Adm: adminID},
		PartnerVenueID: key.B,
		Reason:         strOrEmpty(reason),
	})
	return rec, nil
}

// IsExcluded reports whether the pair carries an exclusion marker, in
// either argument order.
func (r *Registry) IsExcluded(ctx context.Context, venueID1, venueID2 int64) (bool, error) {
	key := models.CanonicalPairKey(venueID1, venueID2)
	rec, err := r.repo.GetExclusionCtx(ctx, key.A, key.B)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// ExcludedPartners returns the IDs of every venue excluded against the
// given venue, sorted ascending.
func (r *Registry) ExcludedPartners(ctx context.Context, venueID int64) ([]int64, error) {
	if venueID <= 0 {
		return nil, errs.NewInvalid("ExcludedPartners", "venue ID must be positive", nil)
	}
	return r.repo.GetExcludedPartnersCtx(ctx, venueID)
}

// ListForVenues returns every exclusion whose both sides fall inside the
// given venue set. Detection uses this to pre-load markers for a locality
// in one query.
func (r *Registry) ListForVenues(ctx context.Context, venueIDs []int64) ([]models.ExclusionRecord, error) {
	return r.repo.GetExclusionsForVenuesCtx(ctx, venueIDs)
}

// Remove deletes the exclusion for the pair. Removing an absent exclusion
// is a not-found error; the pair becomes reportable again on the next scan.
func (r *Registry) Remove(ctx context.Context, venueID1, venueID2 int64, adminID *int) error {
	if venueID1 <= 0 || venueID2 <= 0 {
		return errs.NewInvalid("Remove", "venue IDs must be positive", nil)
	}
	key := models.CanonicalPairKey(venueID1, venueID2)
	deleted, err := r.repo.DeleteExclusionCtx(ctx, key.A, key.B)
	if err != nil {
		return err
	}
	if !deleted {
		return errs.NewNotFound("Remove", "no exclusion exists for pair", nil)
	}

	r.logger.Info("pair exclusion removed",
		logging.Int64("venue_id_1", key.A),
		logging.Int64("venue_id_2", key.B))
	r.emit(ctx, events.ExclusionRemoved{
		Base:           events.Base{Ts: time.Now(), VID: key.A, Adm: adminID},
		PartnerVenueID: key.B,
	})
	return nil
}

// emit appends an audit event. Event persistence is advisory; a failed
// append never fails the operation that triggered it.
func (r *Registry) emit(ctx context.Context, ev events.Event) {
	if err := r.store.Append(ctx, ev); err != nil {
		r.logger.Warn("event append failed", logging.String("type", ev.Type()), logging.Error(err))
	}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
