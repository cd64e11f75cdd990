package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const assetsSchema = `
CREATE TABLE IF NOT EXISTS assets (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    package    TEXT NOT NULL,
    asset_type TEXT NOT NULL,
    asset_name TEXT NOT NULL,
    raw_line   TEXT
);
CREATE INDEX IF NOT EXISTS assets_package_idx ON assets(package);
`

// SQLite is a Store backed by a SQLite database file using the modernc.org/sqlite
// driver.
type SQLite struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog database at path. Pass ":memory:"
// for a throwaway in-memory catalog.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open catalog %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the assets table if it does not already exist.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, assetsSchema); err != nil {
		return fmt.Errorf("cannot create catalog schema: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the record with the given id or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, id int64) (Record, error) {
	var r Record
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, package, asset_type, asset_name, raw_line FROM assets WHERE id = ?`, id).
		Scan(&r.ID, &r.Package, &r.AssetType, &r.AssetName, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("id %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("cannot read catalog record %d: %w", id, err)
	}
	r.RawLine = raw.String
	return r, nil
}

// ListAll returns every record ordered by id.
func (s *SQLite) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, package, asset_type, asset_name, raw_line FROM assets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("cannot list catalog: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var raw sql.NullString
		if err := rows.Scan(&r.ID, &r.Package, &r.AssetType, &r.AssetName, &raw); err != nil {
			return nil, fmt.Errorf("cannot scan catalog row: %w", err)
		}
		r.RawLine = raw.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot list catalog: %w", err)
	}
	return out, nil
}

// Insert appends records to the catalog and returns them with their assigned ids.
func (s *SQLite) Insert(ctx context.Context, records []Record) ([]Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	out, err := insertTx(ctx, tx, records)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("cannot commit catalog insert: %w", err)
	}
	return out, nil
}

// ReplaceAll wipes the catalog and inserts records in one transaction. The id
// sequence is reset, so ids from a previous scan are not preserved.
func (s *SQLite) ReplaceAll(ctx context.Context, records []Record) ([]Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets`); err != nil {
		return nil, fmt.Errorf("cannot clear catalog: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'assets'`); err != nil {
		return nil, fmt.Errorf("cannot reset catalog ids: %w", err)
	}
	out, err := insertTx(ctx, tx, records)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("cannot commit catalog rescan: %w", err)
	}
	return out, nil
}

// Count returns the number of records.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cannot count catalog: %w", err)
	}
	return n, nil
}

// Packages returns the distinct package names in the catalog, sorted.
func (s *SQLite) Packages(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT package FROM assets ORDER BY package`)
	if err != nil {
		return nil, fmt.Errorf("cannot list packages: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func insertTx(ctx context.Context, tx *sql.Tx, records []Record) ([]Record, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO assets(package, asset_type, asset_name, raw_line) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	out := make([]Record, 0, len(records))
	for _, r := range records {
		res, err := stmt.ExecContext(ctx, r.Package, r.AssetType, r.AssetName, r.RawLine)
		if err != nil {
			return nil, fmt.Errorf("cannot insert %s/%s: %w", r.Package, r.AssetName, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		r.ID = id
		out = append(out, r)
	}
	return out, nil
}
