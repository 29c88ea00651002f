// Package storage reads observation records from CSV files or SQLite
// databases and writes artifacts to disk atomically.
//
// The SQLite side is backed by the pure-Go modernc.org/sqlite driver, so the
// binary needs no cgo toolchain. Input databases are only read unless Migrate
// or InsertRecords is called, which the synthetic generator does.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/ratiosentry/internal/logger"
	"github.com/rewired-gh/ratiosentry/internal/models"
)

// DefaultQuery reads the conventional observations table.
const DefaultQuery = `SELECT entity_id, category, period, value, entity_name FROM observations ORDER BY entity_id, period`

const schema = `CREATE TABLE IF NOT EXISTS observations (
	entity_id   TEXT NOT NULL,
	category    TEXT,
	period      TEXT NOT NULL,
	value       REAL,
	entity_name TEXT,
	PRIMARY KEY (entity_id, period)
)`

// Storage wraps a SQLite database holding observations.
type Storage struct {
	db   *sql.DB
	path string
}

// New opens the SQLite database at path. Pass ":memory:" for a private
// in-memory database.
func New(path string) (*Storage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	logger.Debug("Opened SQLite database at %s", path)
	return &Storage{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the observations table if it does not exist.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create observations table: %w", err)
	}
	return nil
}

// InsertRecords writes records in a single transaction, replacing any row
// with the same entity and period.
func (s *Storage) InsertRecords(ctx context.Context, records []models.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO observations (entity_id, category, period, value, entity_name) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var category, value, name any
		if r.Category != nil {
			category = *r.Category
		}
		if r.Value != nil {
			value = *r.Value
		}
		if r.EntityName != "" {
			name = r.EntityName
		}
		if _, err := stmt.ExecContext(ctx, r.EntityID, category, r.Period, value, name); err != nil {
			return fmt.Errorf("failed to insert %s/%s: %w", r.EntityID, r.Period, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	logger.Debug("Inserted %d records into %s", len(records), s.path)
	return nil
}

// LoadRecords runs query and returns one Record per row. The query must yield
// entity_id, category, period and value in that order, optionally followed by
// an entity name; an empty query uses DefaultQuery. Integer periods are read
// back as their decimal text.
func (s *Storage) LoadRecords(ctx context.Context, query string) ([]models.Record, error) {
	if query == "" {
		query = DefaultQuery
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	if len(cols) != 4 && len(cols) != 5 {
		return nil, fmt.Errorf("query must return 4 or 5 columns (entity_id, category, period, value[, entity_name]), got %d", len(cols))
	}

	var records []models.Record
	row := 0
	for rows.Next() {
		row++
		var (
			entityID sql.NullString
			category sql.NullString
			period   sql.NullString
			value    sql.NullFloat64
			name     sql.NullString
		)
		dest := []any{&entityID, &category, &period, &value}
		if len(cols) == 5 {
			dest = append(dest, &name)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, &models.InputValidationError{
				Row:      row,
				EntityID: entityID.String,
				Reason:   fmt.Sprintf("unreadable row: %v", err),
			}
		}

		rec := models.Record{Row: row, EntityID: entityID.String, EntityName: name.String, Period: period.String}
		if category.Valid {
			c := category.String
			rec.Category = &c
		}
		if value.Valid {
			v := value.Float64
			rec.Value = &v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate observations: %w", err)
	}

	logger.Debug("Loaded %d records from %s", len(records), s.path)
	return records, nil
}
