package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// VisitStore is the per-day visit counter
type VisitStore interface {
	// Increment adds one visit to day (YYYY-MM-DD), creating the row on the
	// first visit, and returns the new count.
	Increment(ctx context.Context, day string) (int64, error)
	Get(ctx context.Context, day string) (int64, error)
	Range(ctx context.Context, from, to string) ([]models.VisitCount, error)
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// OpenVisitStore opens the configured backend, or returns nil for "none"
func OpenVisitStore(cfg *config.Config, logger *logrus.Logger) (VisitStore, error) {
	switch cfg.Visits.Driver {
	case "mysql":
		return NewMySQLClient(&cfg.MySQL, logger)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown visits driver %q", cfg.Visits.Driver)
}
