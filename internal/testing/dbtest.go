package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"assisted-venue-dedup/internal/models"
	"assisted-venue-dedup/pkg/database"
)

// DBTest wraps a real MySQL connection for integration tests. It reads
// DATABASE_URL_TEST first so a dedicated test schema can live alongside a
// development database; tests skip when neither variable is set.
type DBTest struct {
	T   *testing.T
	DB  *database.DB
	SQL *sql.DB
}

func NewDBTest(t *testing.T) *DBTest {
	t.Helper()
	url := os.Getenv("DATABASE_URL_TEST")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("DATABASE_URL_TEST or DATABASE_URL not set; skipping integration tests")
	}
	db, err := database.New(url)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	return &DBTest{T: t, DB: db, SQL: db.Conn()}
}

func (d *DBTest) Close() {
	_ = d.DB.Close()
}

// WithTx runs fn inside a transaction that is always rolled back, so
// integration tests never leave rows behind.
func (d *DBTest) WithTx(fn func(ctx context.Context, tx *sql.Tx)) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tx, err := d.SQL.BeginTx(ctx, nil)
	if err != nil {
		d.T.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()
	fn(ctx, tx)
}

// Execer is satisfied by *sql.DB and *sql.Tx, so seeding helpers work both
// for committed fixtures and inside WithTx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SeedVenue inserts a venue and returns its generated ID.
func (d *DBTest) SeedVenue(ctx context.Context, q Execer, v models.Venue) int64 {
	d.T.Helper()
	res, err := q.ExecContext(ctx,
		`INSERT INTO venues (name, address, slug, locality_path, lat, lng) VALUES (?, ?, ?, ?, ?, ?)`,
		v.Name, v.Address, v.Slug, v.LocalityPath, v.Lat, v.Lng)
	if err != nil {
		d.T.Fatalf("seed venue %q: %v", v.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		d.T.Fatalf("seed venue %q: %v", v.Name, err)
	}
	return id
}

// DeleteVenue removes a seeded venue and anything hanging off it.
func (d *DBTest) DeleteVenue(ctx context.Context, id int64) {
	d.T.Helper()
	if _, err := d.SQL.ExecContext(ctx, `DELETE FROM venue_duplicate_exclusions WHERE venue_id_1 = ? OR venue_id_2 = ?`, id, id); err != nil {
		d.T.Logf("cleanup exclusions for venue %d: %v", id, err)
	}
	if _, err := d.SQL.ExecContext(ctx, `DELETE FROM venues WHERE id = ?`, id); err != nil {
		d.T.Logf("cleanup venue %d: %v", id, err)
	}
}
