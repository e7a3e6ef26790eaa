package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"assisted-venue-dedup/internal/constants"
	"assisted-venue-dedup/pkg/database"
)

// SQLEventStore stores dedup events in a SQL table with ordered IDs.
// Table schema:
// CREATE TABLE IF NOT EXISTS venue_dedup_events (
//   id BIGINT AUTO_INCREMENT PRIMARY KEY,
//   venue_id BIGINT NOT NULL,
//   type VARCHAR(64) NOT NULL,
//   at DATETIME(6) NOT NULL,
//   admin_id INT NULL,
//   data JSON NOT NULL,
//   KEY idx_venue_id (venue_id),
//   KEY idx_venue_time (venue_id, id)
// );
// NOTE: JSON may be emulated as LONGTEXT on older MySQL variants.

type SQLEventStore struct {
	db *database.DB
}

func NewSQLEventStore(db *database.DB) *SQLEventStore {
	s := &SQLEventStore{db: db}
	if err := s.ensureTable(); err != nil {
		// Best effort; don't crash app start
		fmt.Printf("[events] ensure table error: %v\n", err)
	}
	return s
}

var _ EventStore = (*SQLEventStore)(nil)

func (s *SQLEventStore) ensureTable() error {
	qry := `CREATE TABLE IF NOT EXISTS venue_dedup_events (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		venue_id BIGINT NOT NULL,
		type VARCHAR(64) NOT NULL,
		at DATETIME(6) NOT NULL,
		admin_id INT NULL,
		data JSON NOT NULL,
		KEY idx_venue_id (venue_id),
		KEY idx_venue_time (venue_id, id)
	)`
	_, err := s.db.Conn().Exec(qry)
	return err
}

func (s *SQLEventStore) Append(ctx context.Context, ev ...Event) error {
	if len(ev) == 0 {
		return nil
	}
	// Appends are advisory; never let a slow event table stall the caller.
	ctx, cancel := context.WithTimeout(ctx, constants.EventsSQLTimeoutDefault)
	defer cancel()
	tx, err := s.db.Conn().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO venue_dedup_events (venue_id, type, at, admin_id, data) VALUES (?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range ev {
		b, err := e.MarshalData()
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		at := e.Timestamp()
		if at.IsZero() {
			at = time.Now()
		}

		if _, err := stmt.ExecContext(ctx, e.VenueID(), e.Type(), at, e.Admin(), string(b)); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLEventStore) ListByVenue(ctx context.Context, venueID int64) ([]StoredEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.EventsSQLTimeoutDefault)
	defer cancel()
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT id, venue_id, type, at, admin_id, data FROM venue_dedup_events WHERE venue_id = ? ORDER BY id ASC`, venueID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var se StoredEvent
		var adminID sql.NullInt64
		var dataStr string
		if err := rows.Scan(&se.Seq, &se.VenueID, &se.Type, &se.Ts, &adminID, &dataStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if adminID.Valid {
			v := int(adminID.Int64)
			se.AdminID = &v
		}
		se.Payload = json.RawMessage(dataStr)
		out = append(out, se)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
