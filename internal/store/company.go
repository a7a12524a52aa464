package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/jobsearch-api/internal/domain"
)

// CompanyStore defines the interface for company data persistence.
type CompanyStore interface {
	// Get retrieves a company by name.
	// Returns ErrCompanyNotFound if the company does not exist.
	Get(ctx context.Context, name string) (*domain.Company, error)

	// Upsert merges the present fields of patch into the stored company,
	// creating it if needed, and returns the merged record. The merge is a
	// single statement, so concurrent upserts touching disjoint fields never
	// lose each other's writes. Absent fields never erase stored values.
	Upsert(ctx context.Context, patch *domain.Company) (*domain.Company, error)

	// List returns every company ordered by name.
	List(ctx context.Context) ([]*domain.Company, error)

	// WithTx returns a new CompanyStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) CompanyStore
}
