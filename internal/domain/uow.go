package domain

import (
	"context"

	"assisted-venue-dedup/internal/models"
)

// UnitOfWork coordinates the merge mutation steps within a single database
// transaction so that either every step lands or none do. It exposes only
// the operations the merge engine needs; detection reads bypass it.
//
// Typical usage:
//  uow, err := factory.Begin(ctx)
//  if err != nil { ... }
//  defer uow.Rollback()
//  src, err := uow.GetVenueForUpdateCtx(ctx, sourceID)
//  ...
//  if err := uow.Commit(); err != nil { ... }
//
// NOTE: Keep the transaction as short as possible.

type UnitOfWork interface {
	// Transaction controls
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	// GetVenueForUpdateCtx loads a venue with a row lock inside the
	// transaction. Returns nil when the venue does not exist.
	GetVenueForUpdateCtx(ctx context.Context, venueID int64) (*models.Venue, error)

	// ReassignVenueDependentsCtx points every dependent row (events, event
	// listings, venue groups, cached images) at the target venue and
	// returns the count of reassigned rows per entity type.
	ReassignVenueDependentsCtx(ctx context.Context, sourceID, targetID int64) (map[string]int, error)

	UpdateVenueProviderIDsCtx(ctx context.Context, venueID int64, providerIDs map[string]string) error
	CreateMergeAuditCtx(ctx context.Context, rec *MergeAuditRecord) error
	DeleteVenueCtx(ctx context.Context, venueID int64) error
}

// UnitOfWorkFactory starts new UnitOfWork instances.
// A returned UnitOfWork is already begun; Begin may be a no-op.
// Keeping Begin on UnitOfWork allows reusing implementations in tests.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
