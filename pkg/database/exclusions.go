package database

import (
	"context"
	"database/sql"
	"strings"

	"assisted-venue-dedup/internal/models"
	errs "assisted-venue-dedup/pkg/errors"

	"github.com/go-sql-driver/mysql"
)

// Exclusion rows are stored with venue_id_1 < venue_id_2 and a unique key on
// the pair; the service layer normalizes before calling in here.

const mysqlErrDuplicateEntry = 1062

// CreateExclusionCtx inserts a "not a duplicate" marker.
func (db *DB) CreateExclusionCtx(ctx context.Context, rec *models.ExclusionRecord) error {
	ctx, cancel := db.withWriteTimeout(ctx)
	defer cancel()

	_, err := db.stmts["insertExclusion"].ExecContext(ctx,
		rec.VenueID1, rec.VenueID2, rec.AdminID, rec.Reason, rec.CreatedAt)
	if err != nil {
		if me, ok := err.(*mysql.MySQLError); ok && me.Number == mysqlErrDuplicateEntry {
			return errs.NewConstraint("CreateExclusionCtx", "pair already excluded", err)
		}
		return errs.NewDB("CreateExclusionCtx", "failed to insert exclusion", err)
	}
	return nil
}

// GetExclusionCtx returns the exclusion for a canonical pair, or nil.
func (db *DB) GetExclusionCtx(ctx context.Context, venueID1, venueID2 int64) (*models.ExclusionRecord, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	query := `SELECT venue_id_1, venue_id_2, admin_id, reason, created_at
	          FROM venue_duplicate_exclusions
	          WHERE venue_id_1 = ? AND venue_id_2 = ?`
	row := db.conn.QueryRowContext(ctx, query, venueID1, venueID2)

	rec, err := scanExclusionRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewDB("GetExclusionCtx", "failed to scan exclusion", err)
	}
	return rec, nil
}

// DeleteExclusionCtx removes an exclusion; returns false when none existed.
func (db *DB) DeleteExclusionCtx(ctx context.Context, venueID1, venueID2 int64) (bool, error) {
	ctx, cancel := db.withWriteTimeout(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM venue_duplicate_exclusions WHERE venue_id_1 = ? AND venue_id_2 = ?`,
		venueID1, venueID2)
	if err != nil {
		return false, errs.NewDB("DeleteExclusionCtx", "failed to delete exclusion", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.NewDB("DeleteExclusionCtx", "rows affected", err)
	}
	return n > 0, nil
}

// GetExclusionsForVenuesCtx returns every exclusion touching any of the
// given venues in one query; the matcher builds its suppression set from it.
func (db *DB) GetExclusionsForVenuesCtx(ctx context.Context, venueIDs []int64) ([]models.ExclusionRecord, error) {
	if len(venueIDs) == 0 {
		return []models.ExclusionRecord{}, nil
	}
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	placeholders := strings.TrimRight(strings.Repeat("?,", len(venueIDs)), ",")
	query := `SELECT venue_id_1, venue_id_2, admin_id, reason, created_at
	          FROM venue_duplicate_exclusions
	          WHERE venue_id_1 IN (` + placeholders + `) OR venue_id_2 IN (` + placeholders + `)`
	args := make([]interface{}, 0, 2*len(venueIDs))
	for _, id := range venueIDs {
		args = append(args, id)
	}
	for _, id := range venueIDs {
		args = append(args, id)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.NewDB("GetExclusionsForVenuesCtx", "failed to query exclusions", err)
	}
	defer rows.Close()

	var recs []models.ExclusionRecord
	for rows.Next() {
		var rec models.ExclusionRecord
		var adminID sql.NullInt32
		var reason sql.NullString
		if err := rows.Scan(&rec.VenueID1, &rec.VenueID2, &adminID, &reason, &rec.CreatedAt); err != nil {
			return nil, errs.NewDB("GetExclusionsForVenuesCtx", "failed to scan exclusion", err)
		}
		if adminID.Valid {
			id := int(adminID.Int32)
			rec.AdminID = &id
		}
		if reason.Valid {
			rec.Reason = &reason.String
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDB("GetExclusionsForVenuesCtx", "row iteration error", err)
	}
	return recs, nil
}

// GetExcludedPartnersCtx lists venue identities excluded against the given venue.
func (db *DB) GetExcludedPartnersCtx(ctx context.Context, venueID int64) ([]int64, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	query := `SELECT venue_id_1, venue_id_2
	          FROM venue_duplicate_exclusions
	          WHERE venue_id_1 = ? OR venue_id_2 = ?
	          ORDER BY created_at DESC`
	rows, err := db.conn.QueryContext(ctx, query, venueID, venueID)
	if err != nil {
		return nil, errs.NewDB("GetExcludedPartnersCtx", "failed to query exclusions", err)
	}
	defer rows.Close()

	var partners []int64
	for rows.Next() {
		var a, b int64
		if err := rows.Scan(&a, &b); err != nil {
			return nil, errs.NewDB("GetExcludedPartnersCtx", "failed to scan exclusion", err)
		}
		if a == venueID {
			partners = append(partners, b)
		} else {
			partners = append(partners, a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDB("GetExcludedPartnersCtx", "row iteration error", err)
	}
	return partners, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExclusionRow(row rowScanner) (*models.ExclusionRecord, error) {
	var rec models.ExclusionRecord
	var adminID sql.NullInt32
	var reason sql.NullString
	if err := row.Scan(&rec.VenueID1, &rec.VenueID2, &adminID, &reason, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if adminID.Valid {
		id := int(adminID.Int32)
		rec.AdminID = &id
	}
	if reason.Valid {
		rec.Reason = &reason.String
	}
	return &rec, nil
}
