package merge

import (
	"context"
	"encoding/json"
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

// Request describes one merge: fold the source venue into the target and
// delete the source. Reason is free-form operator context for the audit
// trail.
type Request struct {
	SourceVenueID int64  `json:"source_venue_id"`
	TargetVenueID int64  `json:"target_venue_id"`
	AdminID       *int   `json:"admin_id,omitempty"`
	Reason        string `json:"reason,omitempty"`

	// Similarity and DistanceM record the evidence that triggered the
	// merge. When nil they are computed from the two venues at merge time.
	Similarity *float64 `json:"similarity,omitempty"`
	DistanceM  *float64 `json:"distance_m,omitempty"`
}

// Result reports a completed merge.
type Result struct {
	Target models.Venue            `json:"target"`
	Audit  domain.MergeAuditRecord `json:"audit"`
}

// Engine performs venue merges. Every merge runs in one transaction:
// dependents reassigned, provider IDs folded, audit written, source
// deleted. Either all of it lands or none of it does.
type Engine struct {
	factory domain.UnitOfWorkFactory
	store   events.EventStore
	logger  *logging.ComponentLogger

	mergesTotal *metrics.Counter
	mergeErrors *metrics.Counter
}

func NewEngine(factory domain.UnitOfWorkFactory, store events.EventStore, logger *logging.Logger) *Engine {
	if store == nil {
		store = events.NopStore{}
	}
	return &Engine{
		factory: factory,
		store:   store,
		logger:  logger.WithComponent("merge"),
		mergesTotal: metrics.Default.Counter("venue_merges_total",
			"Number of completed venue merges"),
		mergeErrors: metrics.Default.Counter("venue_merge_errors_total",
			"Number of failed venue merge attempts"),
	}
}

// Merge folds req.SourceVenueID into req.TargetVenueID. Both venues are
// locked for the duration of the transaction; lock order follows venue ID
// so two concurrent merges over the same pair cannot deadlock.
func (e *Engine) Merge(ctx context.Context, req Request) (*Result, error) {
	if req.SourceVenueID <= 0 || req.TargetVenueID <= 0 {
		return nil, errs.NewInvalid("Merge", "venue IDs must be positive", nil)
	}
	if req.SourceVenueID == req.TargetVenueID {
		return nil, errs.NewInvalid("Merge", "cannot merge a venue into itself", nil)
	}

	res, err := e.merge(ctx, req)
	if err != nil {
		e.mergeErrors.Inc(1)
		return nil, err
	}
	e.mergesTotal.Inc(1)

	e.logger.Info("venues merged",
		logging.Int64("source_venue_id", req.SourceVenueID),
		logging.Int64("target_venue_id", req.TargetVenueID),
		logging.Int("reassigned", res.Audit.TotalReassigned()))
	if aerr := e.store.Append(ctx, events.VenueMerged{
		Base:          events.Base{Ts: res.Audit.CreatedAt, VID: req.TargetVenueID, Adm: req.AdminID},
		SourceVenueID: req.SourceVenueID,
		Reason:        req.Reason,
		Similarity:    res.Audit.Similarity,
		DistanceM:     res.Audit.DistanceM,
		Reassigned:    res.Audit.ReassignedCounts,
	}); aerr != nil {
		e.logger.Warn("event append failed", logging.Error(aerr))
	}
	return res, nil
}

func (e *Engine) merge(ctx context.Context, req Request) (*Result, error) {
	uow, err := e.factory.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	source, target, err := lockBoth(ctx, uow, req.SourceVenueID, req.TargetVenueID)
	if err != nil {
		return nil, err
	}

	counts, err := uow.ReassignVenueDependentsCtx(ctx, source.ID, target.ID)
	if err != nil {
		return nil, err
	}

	merged := mergeProviderIDs(target.ProviderIDs, source.ProviderIDs)
	if err := uow.UpdateVenueProviderIDsCtx(ctx, target.ID, merged); err != nil {
		return nil, err
	}
	target.ProviderIDs = merged

	snapshot, err := json.Marshal(source)
	if err != nil {
		return nil, errs.NewInvalid("Merge", "failed to snapshot source venue", err)
	}
	similarity := req.Similarity
	if similarity == nil {
		similarity = fptrOf(matcher.Similarity(source.Name, target.Name))
	}
	distance := req.DistanceM
	if distance == nil {
		distance = spatial.PairDistance(*source, *target)
	}
	audit := domain.MergeAuditRecord{
		SourceVenueID:    source.ID,
		TargetVenueID:    target.ID,
		AdminID:          req.AdminID,
		Reason:           req.Reason,
		Similarity:       similarity,
		DistanceM:        distance,
		ReassignedCounts: counts,
		SourceSnapshot:   string(snapshot),
		CreatedAt:        time.Now(),
	}
	if err := uow.CreateMergeAuditCtx(ctx, &audit); err != nil {
		return nil, err
	}

	if err := uow.DeleteVenueCtx(ctx, source.ID); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return &Result{Target: *target, Audit: audit}, nil
}

// lockBoth loads both venues with row locks in ascending ID order.
func lockBoth(ctx context.Context, uow domain.UnitOfWork, sourceID, targetID int64) (source, target *models.Venue, err error) {
	first, second := sourceID, targetID
	if second < first {
		first, second = second, first
	}
	a, err := uow.GetVenueForUpdateCtx(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := uow.GetVenueForUpdateCtx(ctx, second)
	if err != nil {
		return nil, nil, err
	}
	if a == nil || b == nil {
		return nil, nil, errs.NewNotFound("Merge", "venue not found", nil)
	}
	if a.ID == sourceID {
		return a, b, nil
	}
	return b, a, nil
}

// mergeProviderIDs folds the source's provider references into the
// target's. On a colliding provider key the source value wins; the
// target's original value stays recoverable from the audit snapshot.
func mergeProviderIDs(target, source map[string]string) map[string]string {
	merged := make(map[string]string, len(target)+len(source))
	for k, v := range target {
		merged[k] = v
	}
	for k, v := range source {
		merged[k] = v
	}
	return merged
}

func fptrOf(v float64) *float64 { return &v }
