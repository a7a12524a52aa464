package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/jobsearch-api/internal/domain"
)

// MemoryCompanyStore is a CompanyStore kept in process memory. Upsert holds
// the lock for the whole read-merge-write, matching the single-statement
// merge of the SQL stores.
type MemoryCompanyStore struct {
	mu        sync.Mutex
	companies map[string]*domain.Company
	now       func() time.Time
}

// NewMemoryCompanyStore creates an empty MemoryCompanyStore.
func NewMemoryCompanyStore() *MemoryCompanyStore {
	return &MemoryCompanyStore{
		companies: make(map[string]*domain.Company),
		now:       time.Now,
	}
}

// Get implements CompanyStore.
func (s *MemoryCompanyStore) Get(ctx context.Context, name string) (*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[domain.NormalizeName(name)]
	if !ok {
		return nil, ErrCompanyNotFound
	}
	return c.Clone(), nil
}

// Upsert implements CompanyStore.
func (s *MemoryCompanyStore) Upsert(ctx context.Context, patch *domain.Company) (*domain.Company, error) {
	if patch == nil {
		return nil, ErrInvalidEntity
	}
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := domain.NormalizeName(patch.Name)
	now := s.now().UTC()

	current, ok := s.companies[name]
	if !ok {
		current = &domain.Company{Name: name, CreatedAt: now}
		s.companies[name] = current
	}
	current.Merge(patch)
	current.UpdatedAt = now

	return current.Clone(), nil
}

// List implements CompanyStore.
func (s *MemoryCompanyStore) List(ctx context.Context) ([]*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	companies := make([]*domain.Company, 0, len(s.companies))
	for _, c := range s.companies {
		companies = append(companies, c.Clone())
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i].Name < companies[j].Name })
	return companies, nil
}

// WithTx returns the store itself; memory operations are already atomic.
func (s *MemoryCompanyStore) WithTx(tx *sql.Tx) CompanyStore {
	return s
}
