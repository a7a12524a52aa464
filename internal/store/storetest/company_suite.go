// Package storetest provides a behavioural test suite shared by every
// CompanyStore implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/store"
)

// CompanyFactory returns a fresh, empty store for a single subtest.
type CompanyFactory func(t *testing.T) store.CompanyStore

// RunCompanyStoreTests runs the full CompanyStore contract against stores
// built by newStore.
func RunCompanyStoreTests(t *testing.T, newStore CompanyFactory) {
	t.Run("GetUnknown", func(t *testing.T) { testGetUnknown(t, newStore(t)) })
	t.Run("UpsertCreates", func(t *testing.T) { testUpsertCreates(t, newStore(t)) })
	t.Run("UpsertMerges", func(t *testing.T) { testUpsertMerges(t, newStore(t)) })
	t.Run("UpsertRejectsInvalid", func(t *testing.T) { testUpsertRejectsInvalid(t, newStore(t)) })
	t.Run("NameIsNormalized", func(t *testing.T) { testNameIsNormalized(t, newStore(t)) })
	t.Run("DisjointMergesCommute", func(t *testing.T) { testDisjointMergesCommute(t, newStore(t)) })
	t.Run("ConcurrentDisjointUpserts", func(t *testing.T) { testConcurrentDisjointUpserts(t, newStore(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newStore(t)) })
}

func testGetUnknown(t *testing.T, s store.CompanyStore) {
	_, err := s.Get(context.Background(), "Nowhere Inc")
	assert.ErrorIs(t, err, store.ErrCompanyNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUpsertCreates(t *testing.T, s store.CompanyStore) {
	ctx := context.Background()

	created, err := s.Upsert(ctx, &domain.Company{
		Name:         "Acme",
		Type:         "fintech",
		Headquarters: "NYC",
		EngSize:      domain.IntPtr(40),
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", created.Name)
	assert.Equal(t, "fintech", created.Type)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())

	fetched, err := s.Get(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "NYC", fetched.Headquarters)
	require.NotNil(t, fetched.EngSize)
	assert.Equal(t, 40, *fetched.EngSize)
	assert.Nil(t, fetched.TotalSize)
}

func testUpsertMerges(t *testing.T, s store.CompanyStore) {
	ctx := context.Background()

	_, err := s.Upsert(ctx, &domain.Company{
		Name:      "Acme",
		Type:      "fintech",
		Notes:     "original notes",
		EngSize:   domain.IntPtr(40),
		TotalSize: domain.IntPtr(100),
	})
	require.NoError(t, err)

	merged, err := s.Upsert(ctx, &domain.Company{
		Name:      "Acme",
		Notes:     "updated notes",
		Type:      "   ",
		TotalSize: domain.IntPtr(120),
	})
	require.NoError(t, err)

	assert.Equal(t, "fintech", merged.Type, "blank values never erase")
	assert.Equal(t, "updated notes", merged.Notes)
	require.NotNil(t, merged.EngSize)
	assert.Equal(t, 40, *merged.EngSize, "nil sizes never erase")
	require.NotNil(t, merged.TotalSize)
	assert.Equal(t, 120, *merged.TotalSize)

	fetched, err := s.Get(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, merged.Notes, fetched.Notes)
	assert.False(t, fetched.UpdatedAt.Before(fetched.CreatedAt))
}

func testUpsertRejectsInvalid(t *testing.T, s store.CompanyStore) {
	ctx := context.Background()

	_, err := s.Upsert(ctx, &domain.Company{Name: "  "})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.ErrorIs(t, err, domain.ErrEmptyCompanyName)

	_, err = s.Upsert(ctx, &domain.Company{Name: "Acme", EngSize: domain.IntPtr(-1)})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	_, err = s.Get(ctx, "Acme")
	assert.ErrorIs(t, err, store.ErrCompanyNotFound)
}

func testNameIsNormalized(t *testing.T, s store.CompanyStore) {
	ctx := context.Background()

	_, err := s.Upsert(ctx, &domain.Company{Name: " Acme ", Type: "fintech"})
	require.NoError(t, err)

	fetched, err := s.Get(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", fetched.Name)
}

func testDisjointMergesCommute(t *testing.T, s store.CompanyStore) {
	ctx := context.Background()

	// The same three patches applied to two companies in opposite orders.
	apply := func(name string, reverse bool) *domain.Company {
		base := &domain.Company{Name: name, Type: "startup", Notes: "seed notes"}
		research := &domain.Company{Name: name, Type: "fintech", Headquarters: "NYC", EngSize: domain.IntPtr(40)}
		manual := &domain.Company{Name: name, Notes: "call Tuesday", ReplyMessage: "Sounds good"}

		order := []*domain.Company{base, research, manual}
		if reverse {
			order = []*domain.Company{base, manual, research}
		}
		var last *domain.Company
		for _, patch := range order {
			var err error
			last, err = s.Upsert(ctx, patch)
			require.NoError(t, err)
		}
		return last
	}

	a := apply("Forward", false)
	b := apply("Reverse", true)

	a.Name, b.Name = "", ""
	assert.Equal(t, withoutTimestamps(a), withoutTimestamps(b))
	assert.Equal(t, "fintech", a.Type)
	assert.Equal(t, "call Tuesday", a.Notes)
}

func testConcurrentDisjointUpserts(t *testing.T, s store.CompanyStore) {
	ctx := context.Background()
	_, err := s.Upsert(ctx, &domain.Company{Name: "Acme"})
	require.NoError(t, err)

	patches := []*domain.Company{
		{Name: "Acme", Type: "fintech"},
		{Name: "Acme", Valuation: "$1B"},
		{Name: "Acme", FundingSeries: "Series C"},
		{Name: "Acme", URL: "https://acme.example"},
		{Name: "Acme", Headquarters: "NYC"},
		{Name: "Acme", RemotePolicy: "hybrid"},
		{Name: "Acme", EngSize: domain.IntPtr(40)},
		{Name: "Acme", TotalSize: domain.IntPtr(120)},
		{Name: "Acme", Notes: "manual edit"},
		{Name: "Acme", ReplyMessage: "draft"},
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(patches))
	for _, p := range patches {
		wg.Add(1)
		go func(p *domain.Company) {
			defer wg.Done()
			if _, err := s.Upsert(ctx, p); err != nil {
				errs <- fmt.Errorf("upsert: %w", err)
			}
		}(p)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, "Acme")
	require.NoError(t, err)

	want := &domain.Company{Name: "Acme"}
	for _, p := range patches {
		want.Merge(p)
	}
	assert.Equal(t, withoutTimestamps(want), withoutTimestamps(got), "no concurrent write may be lost")
}

func testList(t *testing.T, s store.CompanyStore) {
	ctx := context.Background()

	empty, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, name := range []string{"Shopify", "Acme", "Rippling"} {
		_, err := s.Upsert(ctx, &domain.Company{Name: name})
		require.NoError(t, err)
	}

	companies, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 3)
	assert.Equal(t, "Acme", companies[0].Name)
	assert.Equal(t, "Rippling", companies[1].Name)
	assert.Equal(t, "Shopify", companies[2].Name)
}

func withoutTimestamps(c *domain.Company) *domain.Company {
	clone := c.Clone()
	clone.CreatedAt = time.Time{}
	clone.UpdatedAt = time.Time{}
	return clone
}
