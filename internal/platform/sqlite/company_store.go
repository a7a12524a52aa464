package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/platform/logger"
	"github.com/phrazzld/jobsearch-api/internal/store"
)

var upsertCompanySQL = store.CompanyUpsertSQL(func(n int) string { return fmt.Sprintf("?%d", n) })

// CompanyStore implements store.CompanyStore on SQLite.
type CompanyStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

var _ store.CompanyStore = (*CompanyStore)(nil)

// NewCompanyStore creates a CompanyStore. The schema must already be migrated.
func NewCompanyStore(db store.DBTX, logger *slog.Logger) *CompanyStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompanyStore{
		db:     db,
		logger: logger.With("component", "sqlite_company_store"),
		now:    time.Now,
	}
}

// Get implements store.CompanyStore.
func (s *CompanyStore) Get(ctx context.Context, name string) (*domain.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+store.CompanySelectColumns()+` FROM companies WHERE name = ?`,
		domain.NormalizeName(name))

	c, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCompanyNotFound
		}
		return nil, store.NewStoreError("company", "get", "sqlite", MapError(err))
	}
	return c, nil
}

// Upsert implements store.CompanyStore.
func (s *CompanyStore) Upsert(ctx context.Context, patch *domain.Company) (*domain.Company, error) {
	if patch == nil {
		return nil, store.ErrInvalidEntity
	}
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	log := logger.FromContextOrDefault(ctx, s.logger)
	args := store.CompanyUpsertArgs(patch, formatTime(s.now()))

	var merged *domain.Company
	err := retryOnBusy(ctx, busyRetries, func() error {
		c, err := scanCompany(s.db.QueryRowContext(ctx, upsertCompanySQL, args...))
		if err != nil {
			return err
		}
		merged = c
		return nil
	})
	if err != nil {
		log.Error("failed to upsert company",
			slog.String("company", domain.NormalizeName(patch.Name)),
			slog.String("error", err.Error()))
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrInvalidEntity) {
			return nil, mapped
		}
		return nil, store.NewStoreError("company", "upsert", "sqlite", mapped)
	}

	log.Debug("company upserted", slog.String("company", merged.Name))
	return merged, nil
}

// List implements store.CompanyStore.
func (s *CompanyStore) List(ctx context.Context) ([]*domain.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+store.CompanySelectColumns()+` FROM companies ORDER BY name`)
	if err != nil {
		return nil, store.NewStoreError("company", "list", "sqlite", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	companies := make([]*domain.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, store.NewStoreError("company", "list", "sqlite", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("company", "list", "sqlite", MapError(err))
	}
	return companies, nil
}

// WithTx implements store.CompanyStore.
func (s *CompanyStore) WithTx(tx *sql.Tx) store.CompanyStore {
	return &CompanyStore{db: tx, logger: s.logger, now: s.now}
}

func scanCompany(row rowScanner) (*domain.Company, error) {
	var (
		c                    domain.Company
		createdAt, updatedAt string
	)
	dest, applySizes := store.CompanyScanDest(&c, &createdAt, &updatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	applySizes()

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
