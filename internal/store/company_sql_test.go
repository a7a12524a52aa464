package store

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/jobsearch-api/internal/domain"
)

func TestCompanyUpsertSQL(t *testing.T) {
	t.Parallel()

	query := CompanyUpsertSQL(func(n int) string { return fmt.Sprintf("$%d", n) })

	assert.True(t, strings.HasPrefix(query, "INSERT INTO companies (name, type, valuation"))
	assert.Contains(t, query, "ON CONFLICT (name) DO UPDATE SET")
	assert.Contains(t, query, "notes = COALESCE(NULLIF(excluded.notes, ''), companies.notes)")
	assert.Contains(t, query, "eng_size = COALESCE(excluded.eng_size, companies.eng_size)")
	assert.Contains(t, query, "updated_at = excluded.updated_at")
	assert.NotContains(t, query, "created_at = excluded", "creation time is kept on update")
	assert.Contains(t, query, "RETURNING "+CompanySelectColumns())

	// name + business columns + one shared timestamp parameter used twice
	last := fmt.Sprintf("$%d, $%d)", len(companyColumns)+2, len(companyColumns)+2)
	assert.Contains(t, query, last)
}

func TestCompanyUpsertArgs(t *testing.T) {
	t.Parallel()

	patch := &domain.Company{
		Name:    "  Acme ",
		Type:    " fintech ",
		Notes:   "   ",
		EngSize: domain.IntPtr(40),
	}
	args := CompanyUpsertArgs(patch, "now")

	require.Len(t, args, len(companyColumns)+2)
	assert.Equal(t, "Acme", args[0])
	assert.Equal(t, "now", args[len(args)-1])

	byName := map[string]any{}
	for i, col := range companyColumns {
		byName[col.name] = args[i+1]
	}
	assert.Equal(t, "fintech", byName["type"])
	assert.Equal(t, "", byName["notes"])
	assert.Equal(t, int64(40), byName["eng_size"])
	assert.Nil(t, byName["total_size"])
}

func TestCompanyScanDest(t *testing.T) {
	t.Parallel()

	var c domain.Company
	var created, updated string
	dest, apply := CompanyScanDest(&c, &created, &updated)
	require.Len(t, dest, len(companyColumns)+3)

	// Simulate a row scan.
	*dest[0].(*string) = "Acme"
	for i, col := range companyColumns {
		switch {
		case col.name == "eng_size":
			require.NoError(t, dest[i+1].(*sql.NullInt64).Scan(int64(40)))
		case col.name == "total_size":
			require.NoError(t, dest[i+1].(*sql.NullInt64).Scan(nil))
		case col.name == "headquarters":
			*dest[i+1].(*string) = "NYC"
		}
	}
	apply()

	assert.Equal(t, "Acme", c.Name)
	assert.Equal(t, "NYC", c.Headquarters)
	require.NotNil(t, c.EngSize)
	assert.Equal(t, 40, *c.EngSize)
	assert.Nil(t, c.TotalSize)
}
