package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/store"
)

// CompanyService exposes the company repository to the API and CLI.
type CompanyService interface {
	// Get returns a company by name. Returns ErrCompanyNotFound if absent.
	Get(ctx context.Context, name string) (*domain.Company, error)

	// Upsert merges patch into the stored company, creating it if needed.
	// Returns ErrInvalidCompany when the patch fails validation.
	Upsert(ctx context.Context, patch *domain.Company) (*domain.Company, error)

	// List returns every company ordered by name.
	List(ctx context.Context) ([]*domain.Company, error)

	// Import upserts every company in one transaction and returns how many
	// were written. Blank records with no name and no fields are skipped.
	// Nothing is written if any other record is rejected.
	Import(ctx context.Context, companies []*domain.Company) (int, error)
}

// companyServiceImpl implements the CompanyService interface
type companyServiceImpl struct {
	companies store.CompanyStore
	db        *sql.DB
	logger    *slog.Logger
}

// NewCompanyService creates a new CompanyService. db is used to run Import
// in a transaction and may be nil for stores that are not backed by SQL, in
// which case Import validates every record before writing any.
func NewCompanyService(companies store.CompanyStore, db *sql.DB, logger *slog.Logger) (CompanyService, error) {
	if companies == nil {
		return nil, fmt.Errorf("company store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &companyServiceImpl{
		companies: companies,
		db:        db,
		logger:    logger.With("component", "company_service"),
	}, nil
}

// Get implements CompanyService.
func (s *companyServiceImpl) Get(ctx context.Context, name string) (*domain.Company, error) {
	c, err := s.companies.Get(ctx, name)
	if err != nil {
		wrapped := wrapError("company", "get", "failed to get company", err)
		if wrapped != ErrCompanyNotFound {
			s.logger.Error("failed to get company", "error", err, "company", name)
		}
		return nil, wrapped
	}
	return c, nil
}

// Upsert implements CompanyService.
func (s *companyServiceImpl) Upsert(ctx context.Context, patch *domain.Company) (*domain.Company, error) {
	if patch == nil {
		return nil, fmt.Errorf("%w: company cannot be nil", ErrInvalidCompany)
	}
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCompany, err)
	}

	merged, err := s.companies.Upsert(ctx, patch)
	if err != nil {
		s.logger.Error("failed to upsert company", "error", err, "company", patch.Name)
		return nil, wrapError("company", "upsert", "failed to upsert company", err)
	}

	s.logger.Info("company updated", "company", merged.Name)
	return merged, nil
}

// List implements CompanyService.
func (s *companyServiceImpl) List(ctx context.Context) ([]*domain.Company, error) {
	companies, err := s.companies.List(ctx)
	if err != nil {
		s.logger.Error("failed to list companies", "error", err)
		return nil, wrapError("company", "list", "failed to list companies", err)
	}
	return companies, nil
}

// Import implements CompanyService.
func (s *companyServiceImpl) Import(ctx context.Context, companies []*domain.Company) (int, error) {
	records := make([]*domain.Company, 0, len(companies))
	for i, c := range companies {
		if c == nil {
			return 0, fmt.Errorf("%w: record %d is empty", ErrInvalidCompany, i)
		}
		if domain.NormalizeName(c.Name) == "" && c.IsEmpty() {
			s.logger.Debug("skipping blank import record", "record", i)
			continue
		}
		if err := c.Validate(); err != nil {
			return 0, fmt.Errorf("%w: record %d: %w", ErrInvalidCompany, i, err)
		}
		records = append(records, c)
	}

	upsertAll := func(ctx context.Context, repo store.CompanyStore) error {
		for _, c := range records {
			if _, err := repo.Upsert(ctx, c); err != nil {
				return fmt.Errorf("failed to import %q: %w", c.Name, err)
			}
		}
		return nil
	}

	var err error
	if s.db == nil {
		err = upsertAll(ctx, s.companies)
	} else {
		err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
			return upsertAll(ctx, s.companies.WithTx(tx))
		})
	}
	if err != nil {
		s.logger.Error("failed to import companies", "error", err, "count", len(records))
		return 0, wrapError("company", "import", "failed to import companies", err)
	}

	s.logger.Info("companies imported", "count", len(records), "skipped", len(companies)-len(records))
	return len(records), nil
}
