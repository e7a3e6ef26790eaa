package domain

import (
	"context"

	"assisted-venue-dedup/internal/models"
)

// VenueRepository defines read access for venues used by duplicate detection.
// All detection paths are read-only; venue mutation happens only through the
// merge UnitOfWork.
type VenueRepository interface {
	GetVenueByIDCtx(ctx context.Context, venueID int64) (*models.Venue, error)
	GetVenuesByIDsCtx(ctx context.Context, venueIDs []int64) ([]models.Venue, error)
	GetVenuesByLocalityCtx(ctx context.Context, localityPath string) ([]models.Venue, error)
	GetVenuesByLocalitiesCtx(ctx context.Context, localityPaths []string, limit int) ([]models.Venue, error)
	BatchEventCountsCtx(ctx context.Context, venueIDs []int64) (map[int64]int, error)
	UpdateVenueLocalityCtx(ctx context.Context, venueID int64, localityPath, slug string) error
}

// ExclusionRepository defines access for persisted "not a duplicate" markers.
// Pairs are stored in canonical order (smaller identity first); callers of
// the repository must pre-normalize, the service layer does this.
type ExclusionRepository interface {
	CreateExclusionCtx(ctx context.Context, rec *models.ExclusionRecord) error
	GetExclusionCtx(ctx context.Context, venueID1, venueID2 int64) (*models.ExclusionRecord, error)
	DeleteExclusionCtx(ctx context.Context, venueID1, venueID2 int64) (bool, error)
	GetExclusionsForVenuesCtx(ctx context.Context, venueIDs []int64) ([]models.ExclusionRecord, error)
	GetExcludedPartnersCtx(ctx context.Context, venueID int64) ([]int64, error)
}

// MergeAuditRepository defines read access for merge audit records.
// Records are written only inside the merge transaction (see UnitOfWork).
type MergeAuditRepository interface {
	GetMergeAuditsByVenueCtx(ctx context.Context, venueID int64) ([]MergeAuditRecord, error)
	GetMergeAuditsPaginatedCtx(ctx context.Context, limit, offset int) ([]MergeAuditRecord, int, error)
}

// Repository aggregates the repos commonly required by services.
type Repository interface {
	VenueRepository
	ExclusionRepository
	MergeAuditRepository
}
