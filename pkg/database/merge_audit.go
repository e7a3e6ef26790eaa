package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"assisted-venue-dedup/internal/domain"
	errs "assisted-venue-dedup/pkg/errors"
)

// CreateMergeAuditTx inserts the audit record inside the merge transaction.
// The record is the only surviving trace of the deleted source venue, so it
// must never be written outside that transaction.
func (db *DB) CreateMergeAuditTx(ctx context.Context, tx *sql.Tx, rec *domain.MergeAuditRecord) error {
	counts, err := json.Marshal(rec.ReassignedCounts)
	if err != nil {
		return errs.NewDB("CreateMergeAuditTx", "failed to marshal reassigned counts", err)
	}

	query := `INSERT INTO venue_merge_audits
	          (source_venue_id, target_venue_id, admin_id, reason, similarity, distance_m,
	           reassigned_counts, source_snapshot, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query,
		rec.SourceVenueID,
		rec.TargetVenueID,
		rec.AdminID,
		rec.Reason,
		rec.Similarity,
		rec.DistanceM,
		string(counts),
		rec.SourceSnapshot,
		rec.CreatedAt,
	)
	if err != nil {
		return errs.NewDB("CreateMergeAuditTx", "failed to insert merge audit", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errs.NewDB("CreateMergeAuditTx", "failed to get last insert ID", err)
	}
	rec.ID = id
	return nil
}

// GetMergeAuditsByVenueCtx retrieves merge audits touching a venue as either
// source or target.
func (db *DB) GetMergeAuditsByVenueCtx(ctx context.Context, venueID int64) ([]domain.MergeAuditRecord, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	query := `SELECT id, source_venue_id, target_venue_id, admin_id, reason, similarity, distance_m,
	                 reassigned_counts, source_snapshot, created_at
	          FROM venue_merge_audits
	          WHERE source_venue_id = ? OR target_venue_id = ?
	          ORDER BY created_at DESC`

	rows, err := db.conn.QueryContext(ctx, query, venueID, venueID)
	if err != nil {
		return nil, errs.NewDB("GetMergeAuditsByVenueCtx", "failed to query merge audits", err)
	}
	defer rows.Close()

	var recs []domain.MergeAuditRecord
	for rows.Next() {
		rec, err := scanMergeAuditRow(rows)
		if err != nil {
			return nil, errs.NewDB("GetMergeAuditsByVenueCtx", "failed to scan merge audit", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDB("GetMergeAuditsByVenueCtx", "row iteration error", err)
	}
	return recs, nil
}

// GetMergeAuditsPaginatedCtx returns merge audits newest first with a total count.
func (db *DB) GetMergeAuditsPaginatedCtx(ctx context.Context, limit, offset int) ([]domain.MergeAuditRecord, int, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM venue_merge_audits`).Scan(&total); err != nil {
		return nil, 0, errs.NewDB("GetMergeAuditsPaginatedCtx", "failed to count merge audits", err)
	}

	query := `SELECT id, source_venue_id, target_venue_id, admin_id, reason, similarity, distance_m,
	                 reassigned_counts, source_snapshot, created_at
	          FROM venue_merge_audits
	          ORDER BY created_at DESC, id DESC
	          LIMIT ? OFFSET ?`

	rows, err := db.conn.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, errs.NewDB("GetMergeAuditsPaginatedCtx", "failed to query merge audits", err)
	}
	defer rows.Close()

	var recs []domain.MergeAuditRecord
	for rows.Next() {
		rec, err := scanMergeAuditRow(rows)
		if err != nil {
			return nil, 0, errs.NewDB("GetMergeAuditsPaginatedCtx", "failed to scan merge audit", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewDB("GetMergeAuditsPaginatedCtx", "row iteration error", err)
	}
	return recs, total, nil
}

func scanMergeAuditRow(rows *sql.Rows) (*domain.MergeAuditRecord, error) {
	var rec domain.MergeAuditRecord
	var adminID sql.NullInt32
	var similarity, distance sql.NullFloat64
	var counts sql.NullString

	if err := rows.Scan(&rec.ID, &rec.SourceVenueID, &rec.TargetVenueID, &adminID, &rec.Reason,
		&similarity, &distance, &counts, &rec.SourceSnapshot, &rec.CreatedAt); err != nil {
		return nil, err
	}

	if adminID.Valid {
		id := int(adminID.Int32)
		rec.AdminID = &id
	}
	if similarity.Valid {
		f := similarity.Float64
		rec.Similarity = &f
	}
	if distance.Valid {
		f := distance.Float64
		rec.DistanceM = &f
	}
	if counts.Valid && counts.String != "" {
		if err := json.Unmarshal([]byte(counts.String), &rec.ReassignedCounts); err != nil {
			return nil, err
		}
	}
	if rec.ReassignedCounts == nil {
		rec.ReassignedCounts = map[string]int{}
	}
	return &rec, nil
}
