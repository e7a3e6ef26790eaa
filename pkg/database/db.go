package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"assisted-venue-dedup/internal/constants"
	"assisted-venue-dedup/internal/models"
	"assisted-venue-dedup/pkg/config"
	errs "assisted-venue-dedup/pkg/errors"

	_ "github.com/go-sql-driver/mysql"
)

type DB struct {
	conn         *sql.DB
	stmts        map[string]*sql.Stmt
	readTimeout  time.Duration
	writeTimeout time.Duration
}

const venueColumns = `id, name, address, slug, locality_path, lat, lng, provider_ids, created_at, updated_at`

// dependentTables lists every table holding a venue foreign key that the
// merge engine must reassign. Order is stable so audit counts are
// reproducible in logs and tests.
var dependentTables = []string{"events", "event_listings", "venue_groups", "venue_images"}

func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("mysql", databaseURL)
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(50)
	conn.SetMaxIdleConns(15)
	conn.SetConnMaxLifetime(10 * time.Minute)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	db := &DB{
		conn:         conn,
		stmts:        make(map[string]*sql.Stmt),
		readTimeout:  constants.DBReadTimeoutDefault,
		writeTimeout: constants.DBWriteTimeoutDefault,
	}

	if err := db.prepareStatements(); err != nil {
		return nil, errs.NewDB("database.New", "failed to prepare statements", err)
	}

	return db, nil
}

// NewWithConfig creates a database connection with custom configuration settings
func NewWithConfig(databaseURL string, cfg *config.Config) (*DB, error) {
	conn, err := sql.Open("mysql", databaseURL)
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(cfg.DBMaxOpenConns)
	conn.SetMaxIdleConns(cfg.DBMaxIdleConns)
	conn.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Minute)
	conn.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Minute)

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	rt := cfg.DBReadTimeout
	if rt == 0 {
		rt = constants.DBReadTimeoutDefault
	}
	wt := cfg.DBWriteTimeout
	if wt == 0 {
		wt = constants.DBWriteTimeoutDefault
	}

	db := &DB{
		conn:         conn,
		stmts:        make(map[string]*sql.Stmt),
		readTimeout:  rt,
		writeTimeout: wt,
	}

	if err := db.prepareStatements(); err != nil {
		return nil, errs.NewDB("database.NewWithConfig", "failed to prepare statements", err)
	}

	return db, nil
}

// prepareStatements prepares frequently used SQL statements
func (db *DB) prepareStatements() error {
	statements := map[string]string{
		"getVenueByID": `SELECT ` + venueColumns + ` FROM venues WHERE id = ?`,
		"insertExclusion": `INSERT INTO venue_duplicate_exclusions
		                   (venue_id_1, venue_id_2, admin_id, reason, created_at)
		                   VALUES (?, ?, ?, ?, ?)`,
	}

	for name, query := range statements {
		stmt, err := db.conn.Prepare(query)
		if err != nil {
			return errs.NewDB("database.prepareStatements", fmt.Sprintf("failed to prepare statement %s", name), err)
		}
		db.stmts[name] = stmt
	}

	return nil
}

// Close closes database connection and prepared statements
func (db *DB) Close() error {
	for _, stmt := range db.stmts {
		stmt.Close()
	}
	return db.conn.Close()
}

// Conn exposes the raw connection for transactions and health checks.
func (db *DB) Conn() *sql.DB { return db.conn }

// withReadTimeout creates a context with standard read timeout.
func (db *DB) withReadTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, db.readTimeout)
}

// withWriteTimeout creates a context with standard write timeout.
func (db *DB) withWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, db.writeTimeout)
}

// scanVenueRow scans one venue row from a query over venueColumns.
func scanVenueRow(rows *sql.Rows) (*models.Venue, error) {
	var v models.Venue
	var lat, lng sql.NullFloat64
	var providerIDs sql.NullString
	var createdAt, updatedAt sql.NullTime

	if err := rows.Scan(&v.ID, &v.Name, &v.Address, &v.Slug, &v.LocalityPath,
		&lat, &lng, &providerIDs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if lat.Valid {
		f := lat.Float64
		v.Lat = &f
	}
	if lng.Valid {
		f := lng.Float64
		v.Lng = &f
	}
	if providerIDs.Valid && providerIDs.String != "" {
		if err := json.Unmarshal([]byte(providerIDs.String), &v.ProviderIDs); err != nil {
			return nil, fmt.Errorf("bad provider_ids JSON for venue %d: %w", v.ID, err)
		}
	}
	if v.ProviderIDs == nil {
		v.ProviderIDs = map[string]string{}
	}
	if createdAt.Valid {
		t := createdAt.Time
		v.CreatedAt = &t
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		v.UpdatedAt = &t
	}
	return &v, nil
}

func collectVenues(rows *sql.Rows) ([]models.Venue, error) {
	defer rows.Close()
	var venues []models.Venue
	for rows.Next() {
		v, err := scanVenueRow(rows)
		if err != nil {
			return nil, err
		}
		venues = append(venues, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return venues, nil
}

// GetVenueByIDCtx returns one venue or nil when absent.
func (db *DB) GetVenueByIDCtx(ctx context.Context, venueID int64) (*models.Venue, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	rows, err := db.stmts["getVenueByID"].QueryContext(ctx, venueID)
	if err != nil {
		return nil, errs.NewDB("GetVenueByIDCtx", "failed to query venue", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	v, err := scanVenueRow(rows)
	if err != nil {
		return nil, errs.NewDB("GetVenueByIDCtx", "failed to scan venue", err)
	}
	return v, nil
}

// GetVenuesByIDsCtx fetches a batch of venues in one query. Missing IDs are
// simply absent from the result.
func (db *DB) GetVenuesByIDsCtx(ctx context.Context, venueIDs []int64) ([]models.Venue, error) {
	if len(venueIDs) == 0 {
		return []models.Venue{}, nil
	}
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	placeholders := strings.TrimRight(strings.Repeat("?,", len(venueIDs)), ",")
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id IN (` + placeholders + `)`
	args := make([]interface{}, len(venueIDs))
	for i, id := range venueIDs {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.NewDB("GetVenuesByIDsCtx", "failed to query venues", err)
	}
	venues, err := collectVenues(rows)
	if err != nil {
		return nil, errs.NewDB("GetVenuesByIDsCtx", "failed to scan venues", err)
	}
	return venues, nil
}

// GetVenuesByLocalityCtx returns all venues sharing a locality grouping.
func (db *DB) GetVenuesByLocalityCtx(ctx context.Context, localityPath string) ([]models.Venue, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	query := `SELECT ` + venueColumns + ` FROM venues WHERE locality_path = ? ORDER BY id`
	rows, err := db.conn.QueryContext(ctx, query, localityPath)
	if err != nil {
		return nil, errs.NewDB("GetVenuesByLocalityCtx", "failed to query venues", err)
	}
	venues, err := collectVenues(rows)
	if err != nil {
		return nil, errs.NewDB("GetVenuesByLocalityCtx", "failed to scan venues", err)
	}
	return venues, nil
}

// GetVenuesByLocalitiesCtx returns venues in any of the given localities,
// capped at limit rows for cost control. limit <= 0 means no cap.
func (db *DB) GetVenuesByLocalitiesCtx(ctx context.Context, localityPaths []string, limit int) ([]models.Venue, error) {
	if len(localityPaths) == 0 {
		return []models.Venue{}, nil
	}
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	placeholders := strings.TrimRight(strings.Repeat("?,", len(localityPaths)), ",")
	query := `SELECT ` + venueColumns + ` FROM venues WHERE locality_path IN (` + placeholders + `) ORDER BY id`
	args := make([]interface{}, 0, len(localityPaths)+1)
	for _, p := range localityPaths {
		args = append(args, p)
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.NewDB("GetVenuesByLocalitiesCtx", "failed to query venues", err)
	}
	venues, err := collectVenues(rows)
	if err != nil {
		return nil, errs.NewDB("GetVenuesByLocalitiesCtx", "failed to scan venues", err)
	}
	return venues, nil
}

// GetVenuesInRadiusCtx performs a haversine radius search over venues with
// coordinates, scoped to the given locality groupings. limit <= 0 means no
// cap.
func (db *DB) GetVenuesInRadiusCtx(ctx context.Context, lat, lng float64, localityPaths []string, maxDistanceM float64, limit int) ([]models.Venue, error) {
	if len(localityPaths) == 0 {
		return []models.Venue{}, nil
	}
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	placeholders := strings.TrimRight(strings.Repeat("?,", len(localityPaths)), ",")
	// LEAST guards ACOS against floating point drift just above 1.0.
	query := `SELECT ` + venueColumns + `,
	        (6371000 * ACOS(LEAST(1.0,
	            COS(RADIANS(?)) * COS(RADIANS(lat)) * COS(RADIANS(lng) - RADIANS(?)) +
	            SIN(RADIANS(?)) * SIN(RADIANS(lat))))) AS distance_m
	        FROM venues
	        WHERE locality_path IN (` + placeholders + `)
	          AND lat IS NOT NULL AND lng IS NOT NULL
	        HAVING distance_m <= ?
	        ORDER BY distance_m ASC, id ASC`

	args := make([]interface{}, 0, len(localityPaths)+5)
	args = append(args, lat, lng, lat)
	for _, p := range localityPaths {
		args = append(args, p)
	}
	args = append(args, maxDistanceM)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.NewDB("GetVenuesInRadiusCtx", "failed to query venues in radius", err)
	}
	defer rows.Close()

	var venues []models.Venue
	for rows.Next() {
		var v models.Venue
		var vlat, vlng sql.NullFloat64
		var providerIDs sql.NullString
		var createdAt, updatedAt sql.NullTime
		var distance float64
		if err := rows.Scan(&v.ID, &v.Name, &v.Address, &v.Slug, &v.LocalityPath,
			&vlat, &vlng, &providerIDs, &createdAt, &updatedAt, &distance); err != nil {
			return nil, errs.NewDB("GetVenuesInRadiusCtx", "failed to scan venue", err)
		}
		if vlat.Valid {
			f := vlat.Float64
			v.Lat = &f
		}
		if vlng.Valid {
			f := vlng.Float64
			v.Lng = &f
		}
		if providerIDs.Valid && providerIDs.String != "" {
			if err := json.Unmarshal([]byte(providerIDs.String), &v.ProviderIDs); err != nil {
				return nil, errs.NewDB("GetVenuesInRadiusCtx", "bad provider_ids JSON", err)
			}
		}
		if v.ProviderIDs == nil {
			v.ProviderIDs = map[string]string{}
		}
		if createdAt.Valid {
			t := createdAt.Time
			v.CreatedAt = &t
		}
		if updatedAt.Valid {
			t := updatedAt.Time
			v.UpdatedAt = &t
		}
		venues = append(venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDB("GetVenuesInRadiusCtx", "row iteration error", err)
	}
	return venues, nil
}

// BatchEventCountsCtx returns per-venue counts of events in one set-based
// query. Venues without events are absent from the map.
func (db *DB) BatchEventCountsCtx(ctx context.Context, venueIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(venueIDs))
	if len(venueIDs) == 0 {
		return counts, nil
	}
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	placeholders := strings.TrimRight(strings.Repeat("?,", len(venueIDs)), ",")
	query := `SELECT venue_id, COUNT(*) FROM events WHERE venue_id IN (` + placeholders + `) GROUP BY venue_id`
	args := make([]interface{}, len(venueIDs))
	for i, id := range venueIDs {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.NewDB("BatchEventCountsCtx", "failed to query event counts", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, errs.NewDB("BatchEventCountsCtx", "failed to scan event count", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDB("BatchEventCountsCtx", "row iteration error", err)
	}
	return counts, nil
}

// UpdateVenueLocalityCtx sets the locality grouping and slug after a
// geocoder backfill.
func (db *DB) UpdateVenueLocalityCtx(ctx context.Context, venueID int64, localityPath, slug string) error {
	ctx, cancel := db.withWriteTimeout(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE venues SET locality_path = ?, slug = ?, updated_at = NOW() WHERE id = ?`,
		localityPath, slug, venueID)
	if err != nil {
		return errs.NewDB("UpdateVenueLocalityCtx", "failed to update venue locality", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NewNotFound("UpdateVenueLocalityCtx", fmt.Sprintf("venue %d does not exist", venueID), nil)
	}
	return nil
}

// --- Transactional methods used by the merge UnitOfWork ---

// GetVenueForUpdateTx loads a venue inside tx with a row lock.
// Returns nil when the venue does not exist.
func (db *DB) GetVenueForUpdateTx(ctx context.Context, tx *sql.Tx, venueID int64) (*models.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = ? FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, venueID)
	if err != nil {
		return nil, errs.NewDB("GetVenueForUpdateTx", "failed to lock venue row", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	v, err := scanVenueRow(rows)
	if err != nil {
		return nil, errs.NewDB("GetVenueForUpdateTx", "failed to scan venue", err)
	}
	return v, nil
}

// ReassignDependentsTx repoints every dependent table from source to target
// and reports rows moved per table.
func (db *DB) ReassignDependentsTx(ctx context.Context, tx *sql.Tx, sourceID, targetID int64) (map[string]int, error) {
	counts := make(map[string]int, len(dependentTables))
	for _, table := range dependentTables {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET venue_id = ? WHERE venue_id = ?`, table),
			targetID, sourceID)
		if err != nil {
			return nil, errs.NewDB("ReassignDependentsTx", fmt.Sprintf("failed to reassign %s", table), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, errs.NewDB("ReassignDependentsTx", fmt.Sprintf("rows affected for %s", table), err)
		}
		counts[table] = int(n)
	}
	return counts, nil
}

// UpdateVenueProviderIDsTx stores the merged provider-id map on a venue.
func (db *DB) UpdateVenueProviderIDsTx(ctx context.Context, tx *sql.Tx, venueID int64, providerIDs map[string]string) error {
	payload, err := json.Marshal(providerIDs)
	if err != nil {
		return errs.NewDB("UpdateVenueProviderIDsTx", "failed to marshal provider_ids", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE venues SET provider_ids = ?, updated_at = NOW() WHERE id = ?`,
		string(payload), venueID)
	if err != nil {
		return errs.NewDB("UpdateVenueProviderIDsTx", "failed to update provider_ids", err)
	}
	return nil
}

// DeleteVenueTx removes the merged-away source venue.
func (db *DB) DeleteVenueTx(ctx context.Context, tx *sql.Tx, venueID int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM venues WHERE id = ?`, venueID)
	if err != nil {
		return errs.NewDB("DeleteVenueTx", "failed to delete venue", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NewNotFound("DeleteVenueTx", fmt.Sprintf("venue %d does not exist", venueID), nil)
	}
	return nil
}
