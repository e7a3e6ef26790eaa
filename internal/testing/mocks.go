package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"assisted-venue-dedup/internal/domain"
	"assisted-venue-dedup/internal/models"
	errs "assisted-venue-dedup/pkg/errors"
	"assisted-venue-dedup/pkg/events"
)

// MockRepository implements domain.Repository over in-memory maps.
// Exclusions are keyed canonically (smaller ID first), matching the DB
// unique constraint.
type MockRepository struct {
	Mu          sync.Mutex
	Venues      map[int64]models.Venue
	Exclusions  map[models.PairKey]models.ExclusionRecord
	EventCounts map[int64]int
	Audits      []domain.MergeAuditRecord

	// Err, when set, is returned by every call. Simulates a dead database.
	Err error
}

func NewMockRepository(venues ...models.Venue) *MockRepository {
	r := &MockRepository{
		Venues:      map[int64]models.Venue{},
		Exclusions:  map[models.PairKey]models.ExclusionRecord{},
		EventCounts: map[int64]int{},
	}
	for _, v := range venues {
		r.Venues[v.ID] = v
	}
	return r
}

var _ domain.Repository = (*MockRepository)(nil)

func (r *MockRepository) GetVenueByIDCtx(ctx context.Context, venueID int64) (*models.Venue, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	v, ok := r.Venues[venueID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *MockRepository) GetVenuesByIDsCtx(ctx context.Context, venueIDs []int64) ([]models.Venue, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]models.Venue, 0, len(venueIDs))
	for _, id := range venueIDs {
		if v, ok := r.Venues[id]; ok {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MockRepository) GetVenuesByLocalityCtx(ctx context.Context, localityPath string) ([]models.Venue, error) {
	return r.GetVenuesByLocalitiesCtx(ctx, []string{localityPath}, 0)
}

func (r *MockRepository) GetVenuesByLocalitiesCtx(ctx context.Context, localityPaths []string, limit int) ([]models.Venue, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	paths := make(map[string]struct{}, len(localityPaths))
	for _, p := range localityPaths {
		paths[p] = struct{}{}
	}
	var out []models.Venue
	for _, v := range r.Venues {
		if _, ok := paths[v.LocalityPath]; ok {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockRepository) BatchEventCountsCtx(ctx context.Context, venueIDs []int64) (map[int64]int, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := map[int64]int{}
	for _, id := range venueIDs {
		if c, ok := r.EventCounts[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (r *MockRepository) UpdateVenueLocalityCtx(ctx context.Context, venueID int64, localityPath, slug string) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	v, ok := r.Venues[venueID]
	if !ok {
		return errs.NewNotFound("UpdateVenueLocalityCtx", "venue not found", nil)
	}
	v.LocalityPath = localityPath
	v.Slug = slug
	r.Venues[venueID] = v
	return nil
}

func (r *MockRepository) CreateExclusionCtx(ctx context.Context, rec *models.ExclusionRecord) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	key := models.CanonicalPairKey(rec.VenueID1, rec.VenueID2)
	if _, ok := r.Exclusions[key]; ok {
		return errs.NewConstraint("CreateExclusionCtx", "pair already excluded", nil)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	r.Exclusions[key] = *rec
	return nil
}

func (r *MockRepository) GetExclusionCtx(ctx context.Context, venueID1, venueID2 int64) (*models.ExclusionRecord, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	rec, ok := r.Exclusions[models.CanonicalPairKey(venueID1, venueID2)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *MockRepository) DeleteExclusionCtx(ctx context.Context, venueID1, venueID2 int64) (bool, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	key := models.CanonicalPairKey(venueID1, venueID2)
	if _, ok := r.Exclusions[key]; !ok {
		return false, nil
	}
	delete(r.Exclusions, key)
	return true, nil
}

func (r *MockRepository) GetExclusionsForVenuesCtx(ctx context.Context, venueIDs []int64) ([]models.ExclusionRecord, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	ids := make(map[int64]struct{}, len(venueIDs))
	for _, id := range venueIDs {
		ids[id] = struct{}{}
	}
	var out []models.ExclusionRecord
	for key, rec := range r.Exclusions {
		_, a := ids[key.A]
		_, b := ids[key.B]
		if a && b {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VenueID1 != out[j].VenueID1 {
			return out[i].VenueID1 < out[j].VenueID1
		}
		return out[i].VenueID2 < out[j].VenueID2
	})
	return out, nil
}

func (r *MockRepository) GetExcludedPartnersCtx(ctx context.Context, venueID int64) ([]int64, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []int64
	for key := range r.Exclusions {
		switch venueID {
		case key.A:
			out = append(out, key.B)
		case key.B:
			out = append(out, key.A)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *MockRepository) GetMergeAuditsByVenueCtx(ctx context.Context, venueID int64) ([]domain.MergeAuditRecord, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []domain.MergeAuditRecord
	for _, a := range r.Audits {
		if a.SourceVenueID == venueID || a.TargetVenueID == venueID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MockRepository) GetMergeAuditsPaginatedCtx(ctx context.Context, limit, offset int) ([]domain.MergeAuditRecord, int, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Err != nil {
		return nil, 0, r.Err
	}
	total := len(r.Audits)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]domain.MergeAuditRecord, end-offset)
	copy(out, r.Audits[offset:end])
	return out, total, nil
}

// MockUnitOfWork implements domain.UnitOfWork over the MockRepository's
// venue map. Mutations buffer until Commit; Rollback discards them, which
// lets tests assert merge atomicity by injecting a failure mid-transaction.
type MockUnitOfWork struct {
	Repo *MockRepository

	// Per-step injectable failures.
	FailGetForUpdate error
	FailReassign     error
	FailProviderIDs  error
	FailAudit        error
	FailDelete       error
	FailCommit       error

	Committed  bool
	RolledBack bool

	// DependentCounts is returned by ReassignVenueDependentsCtx.
	DependentCounts map[string]int

	pendingProviderIDs map[int64]map[string]string
	pendingDeletes     []int64
	pendingAudits      []domain.MergeAuditRecord
}

var _ domain.UnitOfWork = (*MockUnitOfWork)(nil)

func (u *MockUnitOfWork) Begin(ctx context.Context) error { return nil }

func (u *MockUnitOfWork) Commit() error {
	if u.FailCommit != nil {
		return u.FailCommit
	}
	u.Repo.Mu.Lock()
	defer u.Repo.Mu.Unlock()
	for id, pids := range u.pendingProviderIDs {
		v := u.Repo.Venues[id]
		v.ProviderIDs = pids
		u.Repo.Venues[id] = v
	}
	for i := range u.pendingAudits {
		u.pendingAudits[i].ID = int64(len(u.Repo.Audits) + 1)
		u.Repo.Audits = append(u.Repo.Audits, u.pendingAudits[i])
	}
	for _, id := range u.pendingDeletes {
		delete(u.Repo.Venues, id)
	}
	u.Committed = true
	return nil
}

func (u *MockUnitOfWork) Rollback() error {
	if u.Committed {
		return nil
	}
	u.pendingProviderIDs = nil
	u.pendingAudits = nil
	u.pendingDeletes = nil
	u.RolledBack = true
	return nil
}

func (u *MockUnitOfWork) GetVenueForUpdateCtx(ctx context.Context, venueID int64) (*models.Venue, error) {
	if u.FailGetForUpdate != nil {
		return nil, u.FailGetForUpdate
	}
	return u.Repo.GetVenueByIDCtx(ctx, venueID)
}

func (u *MockUnitOfWork) ReassignVenueDependentsCtx(ctx context.Context, sourceID, targetID int64) (map[string]int, error) {
	if u.FailReassign != nil {
		return nil, u.FailReassign
	}
	if u.DependentCounts != nil {
		return u.DependentCounts, nil
	}
	return map[string]int{}, nil
}

func (u *MockUnitOfWork) UpdateVenueProviderIDsCtx(ctx context.Context, venueID int64, providerIDs map[string]string) error {
	if u.FailProviderIDs != nil {
		return u.FailProviderIDs
	}
	if u.pendingProviderIDs == nil {
		u.pendingProviderIDs = map[int64]map[string]string{}
	}
	u.pendingProviderIDs[venueID] = providerIDs
	return nil
}

func (u *MockUnitOfWork) CreateMergeAuditCtx(ctx context.Context, rec *domain.MergeAuditRecord) error {
	if u.FailAudit != nil {
		return u.FailAudit
	}
	u.pendingAudits = append(u.pendingAudits, *rec)
	return nil
}

func (u *MockUnitOfWork) DeleteVenueCtx(ctx context.Context, venueID int64) error {
	if u.FailDelete != nil {
		return u.FailDelete
	}
	u.pendingDeletes = append(u.pendingDeletes, venueID)
	return nil
}

// MockUoWFactory hands out a fixed MockUnitOfWork so tests can inspect it
// after the operation under test finishes.
type MockUoWFactory struct {
	UoW      *MockUnitOfWork
	BeginErr error
}

var _ domain.UnitOfWorkFactory = (*MockUoWFactory)(nil)

func (f *MockUoWFactory) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	if f.BeginErr != nil {
		return nil, f.BeginErr
	}
	return f.UoW, nil
}

// MockEventStore records appended events in memory.
type MockEventStore struct {
	Mu     sync.Mutex
	Events []events.Event
	Err    error
}

var _ events.EventStore = (*MockEventStore)(nil)

func (s *MockEventStore) Append(ctx context.Context, ev ...events.Event) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Events = append(s.Events, ev...)
	return nil
}

func (s *MockEventStore) ListByVenue(ctx context.Context, venueID int64) ([]events.StoredEvent, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []events.StoredEvent
	for i, e := range s.Events {
		if e.VenueID() != venueID {
			continue
		}
		payload, err := e.MarshalData()
		if err != nil {
			return nil, err
		}
		out = append(out, events.StoredEvent{
			Seq:     int64(i + 1),
			VenueID: e.VenueID(),
			Type:    e.Type(),
			Ts:      e.Timestamp(),
			AdminID: e.Admin(),
			Payload: payload,
		})
	}
	return out, nil
}

func (s *MockEventStore) Types() []string {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	out := make([]string, len(s.Events))
	for i, e := range s.Events {
		out[i] = e.Type()
	}
	return out
}
