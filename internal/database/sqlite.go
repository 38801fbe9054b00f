package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/StockHamster/market-calendar/pkg/models"
)

// SQLiteStore is the single-file visit counter
type SQLiteStore struct {
	db     *sql.DB
	logger *logrus.Entry
	path   string
}

// NewSQLiteStore opens (or creates) the database file
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// one writer; the driver serializes access through this connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite"),
		path:   path,
	}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.WithField("path", path).Debug("Opened visit store")
	return s, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Health pings the database
func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the visits table
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS visits (
		day        TEXT    NOT NULL PRIMARY KEY,
		count      INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	)`)
	if err != nil {
		return fmt.Errorf("failed to create visits table: %w", err)
	}
	return nil
}

// Increment implements VisitStore
func (s *SQLiteStore) Increment(ctx context.Context, day string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE visits SET count = count + 1, updated_at = strftime('%s','now') WHERE day = ?`, day)
	if err != nil {
		return 0, fmt.Errorf("failed to update visits: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO visits (day, count) VALUES (?, 1)`, day); err != nil {
			return 0, fmt.Errorf("failed to create visits row: %w", err)
		}
	}

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT count FROM visits WHERE day = ?`, day).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to read visits: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit visits: %w", err)
	}
	return count, nil
}

// Get implements VisitStore
func (s *SQLiteStore) Get(ctx context.Context, day string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT count FROM visits WHERE day = ?`, day).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read visits: %w", err)
	}
	return count, nil
}

// Range implements VisitStore
func (s *SQLiteStore) Range(ctx context.Context, from, to string) ([]models.VisitCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, count FROM visits WHERE day >= ? AND day <= ? ORDER BY day`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var out []models.VisitCount
	for rows.Next() {
		var v models.VisitCount
		if err := rows.Scan(&v.Day, &v.Count); err != nil {
			return nil, fmt.Errorf("failed to scan visits: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
