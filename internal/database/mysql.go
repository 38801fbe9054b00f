package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// MySQLClient is the MySQL visit counter
type MySQLClient struct {
	db     *sql.DB
	logger *logrus.Entry
	cfg    *config.MySQLConfig
}

// NewMySQLClient creates a new MySQL client
func NewMySQLClient(cfg *config.MySQLConfig, logger *logrus.Logger) (*MySQLClient, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	logger.WithField("dsn", fmt.Sprintf("%s:***@tcp(%s:%d)/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)).Debug("Connecting to MySQL")

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return &MySQLClient{
		db:     db,
		logger: logger.WithField("component", "mysql"),
		cfg:    cfg,
	}, nil
}

// Close closes the database connection
func (mc *MySQLClient) Close() error {
	return mc.db.Close()
}

// Health checks database health
func (mc *MySQLClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return mc.db.PingContext(ctx)
}

// Migrate creates the visits table
func (mc *MySQLClient) Migrate(ctx context.Context) error {
	_, err := mc.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS visits (
			day        DATE        NOT NULL PRIMARY KEY,
			count      BIGINT      NOT NULL DEFAULT 0,
			updated_at TIMESTAMP   NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`)
	if err != nil {
		return fmt.Errorf("failed to create visits table: %w", err)
	}
	return nil
}

// Increment implements VisitStore
func (mc *MySQLClient) Increment(ctx context.Context, day string) (int64, error) {
	tx, err := mc.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE visits SET count = count + 1 WHERE day = ?`, day)
	if err != nil {
		return 0, fmt.Errorf("failed to update visits: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO visits (day, count) VALUES (?, 1) ON DUPLICATE KEY UPDATE count = count + 1`, day); err != nil {
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
func (mc *MySQLClient) Get(ctx context.Context, day string) (int64, error) {
	var count int64
	err := mc.db.QueryRowContext(ctx, `SELECT count FROM visits WHERE day = ?`, day).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read visits: %w", err)
	}
	return count, nil
}

// Range implements VisitStore
func (mc *MySQLClient) Range(ctx context.Context, from, to string) ([]models.VisitCount, error) {
	rows, err := mc.db.QueryContext(ctx,
		`SELECT DATE_FORMAT(day, '%Y-%m-%d'), count FROM visits WHERE day BETWEEN ? AND ? ORDER BY day`, from, to)
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
