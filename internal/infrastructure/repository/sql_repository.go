package repository

import (
	"context"

	"assisted-venue-dedup/internal/domain"
	"assisted-venue-dedup/internal/models"
	"assisted-venue-dedup/pkg/database"
)

// SQLRepository is a thin adapter over pkg/database.DB to satisfy domain repositories.
// It keeps business logic decoupled from the SQL layer.
type SQLRepository struct {
	db *database.DB
}

func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Ensure interface compliance at compile time
var _ domain.Repository = (*SQLRepository)(nil)

// VenueRepository methods
func (r *SQLRepository) GetVenueByIDCtx(ctx context.Context, venueID int64) (*models.Venue, error) {
	return r.db.GetVenueByIDCtx(ctx, venueID)
}

func (r *SQLRepository) GetVenuesByIDsCtx(ctx context.Context, venueIDs []int64) ([]models.Venue, error) {
	return r.db.GetVenuesByIDsCtx(ctx, venueIDs)
}

func (r *SQLRepository) GetVenuesByLocalityCtx(ctx context.Context, localityPath string) ([]models.Venue, error) {
	return r.db.GetVenuesByLocalityCtx(ctx, localityPath)
}

func (r *SQLRepository) GetVenuesByLocalitiesCtx(ctx context.Context, localityPaths []string, limit int) ([]models.Venue, error) {
	return r.db.GetVenuesByLocalitiesCtx(ctx, localityPaths, limit)
}

func (r *SQLRepository) BatchEventCountsCtx(ctx context.Context, venueIDs []int64) (map[int64]int, error) {
	return r.db.BatchEventCountsCtx(ctx, venueIDs)
}

func (r *SQLRepository) UpdateVenueLocalityCtx(ctx context.Context, venueID int64, localityPath, slug string) error {
	return r.db.UpdateVenueLocalityCtx(ctx, venueID, localityPath, slug)
}

// ExclusionRepository methods
func (r *SQLRepository) CreateExclusionCtx(ctx context.Context, rec *models.ExclusionRecord) error {
	return r.db.CreateExclusionCtx(ctx, rec)
}

func (r *SQLRepository) GetExclusionCtx(ctx context.Context, venueID1, venueID2 int64) (*models.ExclusionRecord, error) {
	return r.db.GetExclusionCtx(ctx, venueID1, venueID2)
}

func (r *SQLRepository) DeleteExclusionCtx(ctx context.Context, venueID1, venueID2 int64) (bool, error) {
	return r.db.DeleteExclusionCtx(ctx, venueID1, venueID2)
}

func (r *SQLRepository) GetExclusionsForVenuesCtx(ctx context.Context, venueIDs []int64) ([]models.ExclusionRecord, error) {
	return r.db.GetExclusionsForVenuesCtx(ctx, venueIDs)
}

func (r *SQLRepository) GetExcludedPartnersCtx(ctx context.Context, venueID int64) ([]int64, error) {
	return r.db.GetExcludedPartnersCtx(ctx, venueID)
}

// MergeAuditRepository methods
func (r *SQLRepository) GetMergeAuditsByVenueCtx(ctx context.Context, venueID int64) ([]domain.MergeAuditRecord, error) {
	return r.db.GetMergeAuditsByVenueCtx(ctx, venueID)
}

func (r *SQLRepository) GetMergeAuditsPaginatedCtx(ctx context.Context, limit, offset int) ([]domain.MergeAuditRecord, int, error) {
	return r.db.GetMergeAuditsPaginatedCtx(ctx, limit, offset)
}
