package repository

import (
	"context"
	"database/sql"
	"fmt"

	"assisted-venue-dedup/internal/domain"
	"assisted-venue-dedup/internal/models"
	"assisted-venue-dedup/pkg/database"
)

// SQLUnitOfWorkFactory starts SQL-backed UnitOfWork transactions.
type SQLUnitOfWorkFactory struct {
	db *database.DB
}

func NewSQLUnitOfWorkFactory(db *database.DB) *SQLUnitOfWorkFactory {
	return &SQLUnitOfWorkFactory{db: db}
}

// Ensure interface conformance
var _ domain.UnitOfWorkFactory = (*SQLUnitOfWorkFactory)(nil)

func (f *SQLUnitOfWorkFactory) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := f.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("uow: begin tx: %w", err)
	}
	return &SQLUnitOfWork{db: f.db, tx: tx}, nil
}

// SQLUnitOfWork coordinates merge operations using a single *sql.Tx.
type SQLUnitOfWork struct {
	db *database.DB
	tx *sql.Tx
	// simple guard to avoid double commit/rollback
	closed bool
}

var _ domain.UnitOfWork = (*SQLUnitOfWork)(nil)

func (u *SQLUnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return nil
	}
	tx, err := u.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("uow: begin: %w", err)
	}
	u.tx = tx
	return nil
}

func (u *SQLUnitOfWork) Commit() error {
	if u.closed {
		return nil
	}
	u.closed = true
	if u.tx == nil {
		return nil
	}
	return u.tx.Commit()
}

func (u *SQLUnitOfWork) Rollback() error {
	if u.closed {
		return nil
	}
	u.closed = true
	if u.tx == nil {
		return nil
	}
	return u.tx.Rollback()
}

func (u *SQLUnitOfWork) GetVenueForUpdateCtx(ctx context.Context, venueID int64) (*models.Venue, error) {
	if u.tx == nil {
		return nil, fmt.Errorf("uow: no active transaction for GetVenueForUpdateCtx")
	}
	return u.db.GetVenueForUpdateTx(ctx, u.tx, venueID)
}

func (u *SQLUnitOfWork) ReassignVenueDependentsCtx(ctx context.Context, sourceID, targetID int64) (map[string]int, error) {
	if u.tx == nil {
		return nil, fmt.Errorf("uow: no active transaction for ReassignVenueDependentsCtx")
	}
	return u.db.ReassignDependentsTx(ctx, u.tx, sourceID, targetID)
}

func (u *SQLUnitOfWork) UpdateVenueProviderIDsCtx(ctx context.Context, venueID int64, providerIDs map[string]string) error {
	if u.tx == nil {
		return fmt.Errorf("uow: no active transaction for UpdateVenueProviderIDsCtx")
	}
	return u.db.UpdateVenueProviderIDsTx(ctx, u.tx, venueID, providerIDs)
}

func (u *SQLUnitOfWork) CreateMergeAuditCtx(ctx context.Context, rec *domain.MergeAuditRecord) error {
	if u.tx == nil {
		return fmt.Errorf("uow: no active transaction for CreateMergeAuditCtx")
	}
	return u.db.CreateMergeAuditTx(ctx, u.tx, rec)
}

func (u *SQLUnitOfWork) DeleteVenueCtx(ctx context.Context, venueID int64) error {
	if u.tx == nil {
		return fmt.Errorf("uow: no active transaction for DeleteVenueCtx")
	}
	return u.db.DeleteVenueTx(ctx, u.tx, venueID)
}
