package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/jobsearch-api/internal/config"
	"github.com/phrazzld/jobsearch-api/internal/platform/database"
	"github.com/phrazzld/jobsearch-api/internal/platform/postgres"
	"github.com/phrazzld/jobsearch-api/internal/platform/sqlite"
	"github.com/phrazzld/jobsearch-api/internal/store"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// Stores holds the database handle and the stores built on it.
type Stores struct {
	Driver    string
	DB        *sql.DB
	Tasks     task.TaskStore
	Companies store.CompanyStore
}

// OpenStores opens the configured database, applies pending migrations and
// builds the task and company stores for its driver.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Stores, error) {
	db, err := database.OpenAndMigrate(ctx, cfg.Driver, cfg.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	stores, err := NewStores(cfg.Driver, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return stores, nil
}

// NewStores builds the stores for driver on an open database.
func NewStores(driver string, db *sql.DB, logger *slog.Logger) (*Stores, error) {
	s := &Stores{Driver: driver, DB: db}
	switch driver {
	case database.DriverPostgres:
		s.Tasks = postgres.NewPostgresTaskStore(db, logger)
		s.Companies = postgres.NewPostgresCompanyStore(db, logger)
	case database.DriverSQLite:
		s.Tasks = sqlite.NewTaskStore(db, logger)
		s.Companies = sqlite.NewCompanyStore(db, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return s, nil
}

// Close closes the database handle.
func (s *Stores) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
