package postgres

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

var upsertCompanySQL = store.CompanyUpsertSQL(func(n int) string { return fmt.Sprintf("$%d", n) })

// PostgresCompanyStore implements the store.CompanyStore interface using PostgreSQL
type PostgresCompanyStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.CompanyStore = (*PostgresCompanyStore)(nil)

// NewPostgresCompanyStore creates a new PostgresCompanyStore
func NewPostgresCompanyStore(db store.DBTX, logger *slog.Logger) *PostgresCompanyStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCompanyStore{
		db:     db,
		logger: logger.With("component", "postgres_company_store"),
	}
}

// Get implements store.CompanyStore.
func (s *PostgresCompanyStore) Get(ctx context.Context, name string) (*domain.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+store.CompanySelectColumns()+` FROM companies WHERE name = $1`,
		domain.NormalizeName(name))

	c, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCompanyNotFound
		}
		return nil, store.NewStoreError("company", "get", "postgres", MapError(err))
	}
	return c, nil
}

// Upsert implements store.CompanyStore. INSERT ... ON CONFLICT takes a row
// lock for the merge, so concurrent upserts of one company apply one after
// the other against the latest stored values.
func (s *PostgresCompanyStore) Upsert(ctx context.Context, patch *domain.Company) (*domain.Company, error) {
	if patch == nil {
		return nil, store.ErrInvalidEntity
	}
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	log := logger.FromContextOrDefault(ctx, s.logger)
	args := store.CompanyUpsertArgs(patch, time.Now().UTC())

	merged, err := scanCompany(s.db.QueryRowContext(ctx, upsertCompanySQL, args...))
	if err != nil {
		log.Error("failed to upsert company",
			slog.String("company", domain.NormalizeName(patch.Name)),
			slog.String("error", err.Error()))
		if IsConstraintViolation(err) {
			return nil, MapError(err)
		}
		return nil, store.NewStoreError("company", "upsert", "postgres", MapError(err))
	}
	return merged, nil
}

// List implements store.CompanyStore.
func (s *PostgresCompanyStore) List(ctx context.Context) ([]*domain.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+store.CompanySelectColumns()+` FROM companies ORDER BY name`)
	if err != nil {
		return nil, store.NewStoreError("company", "list", "postgres", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	companies := make([]*domain.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, store.NewStoreError("company", "list", "postgres", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("company", "list", "postgres", MapError(err))
	}
	return companies, nil
}

// WithTx implements store.CompanyStore.
func (s *PostgresCompanyStore) WithTx(tx *sql.Tx) store.CompanyStore {
	return &PostgresCompanyStore{db: tx, logger: s.logger}
}

func scanCompany(row rowScanner) (*domain.Company, error) {
	var c domain.Company
	dest, applySizes := store.CompanyScanDest(&c, &c.CreatedAt, &c.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	applySizes()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
