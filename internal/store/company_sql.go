package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/phrazzld/jobsearch-api/internal/domain"
)

// companyColumn binds a companies table column to the Company field it stores.
// Exactly one of text and size is set.
type companyColumn struct {
	name string
	text func(c *domain.Company) *string
	size func(c *domain.Company) **int
}

// companyColumns lists the business columns of the companies table in
// schema order. The SQL stores build their statements from it so that both
// backends agree on names, order and merge rules.
var companyColumns = []companyColumn{
	{name: "type", text: func(c *domain.Company) *string { return &c.Type }},
	{name: "valuation", text: func(c *domain.Company) *string { return &c.Valuation }},
	{name: "funding_series", text: func(c *domain.Company) *string { return &c.FundingSeries }},
	{name: "url", text: func(c *domain.Company) *string { return &c.URL }},
	{name: "current_state", text: func(c *domain.Company) *string { return &c.CurrentState }},
	{name: "headquarters", text: func(c *domain.Company) *string { return &c.Headquarters }},
	{name: "remote_policy", text: func(c *domain.Company) *string { return &c.RemotePolicy }},
	{name: "eng_size", size: func(c *domain.Company) **int { return &c.EngSize }},
	{name: "total_size", size: func(c *domain.Company) **int { return &c.TotalSize }},
	{name: "ny_address", text: func(c *domain.Company) *string { return &c.NYAddress }},
	{name: "level_equiv", text: func(c *domain.Company) *string { return &c.LevelEquiv }},
	{name: "total_comp", text: func(c *domain.Company) *string { return &c.TotalComp }},
	{name: "ai_notes", text: func(c *domain.Company) *string { return &c.AINotes }},
	{name: "notes", text: func(c *domain.Company) *string { return &c.Notes }},
	{name: "initial_message", text: func(c *domain.Company) *string { return &c.InitialMessage }},
	{name: "reply_message", text: func(c *domain.Company) *string { return &c.ReplyMessage }},
}

// CompanySelectColumns returns the column list every company query selects,
// in the order CompanyScanDest expects.
func CompanySelectColumns() string {
	names := make([]string, 0, len(companyColumns)+3)
	names = append(names, "name")
	for _, col := range companyColumns {
		names = append(names, col.name)
	}
	names = append(names, "created_at", "updated_at")
	return strings.Join(names, ", ")
}

// CompanyUpsertSQL builds the single-statement merge used by the SQL stores.
// placeholder renders the n-th (1-based) bind parameter for the dialect.
//
// Present values in the inserted row replace stored ones; empty strings and
// NULL sizes keep what is stored. Arguments are produced by CompanyUpsertArgs.
func CompanyUpsertSQL(placeholder func(n int) string) string {
	var (
		cols    []string
		values  []string
		updates []string
	)

	n := 0
	next := func() string {
		n++
		return placeholder(n)
	}

	cols = append(cols, "name")
	values = append(values, next())
	for _, col := range companyColumns {
		cols = append(cols, col.name)
		values = append(values, next())
		if col.text != nil {
			updates = append(updates, fmt.Sprintf(
				"%[1]s = COALESCE(NULLIF(excluded.%[1]s, ''), companies.%[1]s)", col.name))
		} else {
			updates = append(updates, fmt.Sprintf(
				"%[1]s = COALESCE(excluded.%[1]s, companies.%[1]s)", col.name))
		}
	}
	cols = append(cols, "created_at", "updated_at")
	now := next()
	values = append(values, now, now)
	updates = append(updates, "updated_at = excluded.updated_at")

	return fmt.Sprintf(
		"INSERT INTO companies (%s)\nVALUES (%s)\nON CONFLICT (name) DO UPDATE SET\n    %s\nRETURNING %s",
		strings.Join(cols, ", "),
		strings.Join(values, ", "),
		strings.Join(updates, ",\n    "),
		CompanySelectColumns(),
	)
}

// CompanyUpsertArgs returns the bind arguments for CompanyUpsertSQL: the
// normalized name, every business column, then the timestamp. Text values
// are trimmed so blank input never overwrites stored data.
func CompanyUpsertArgs(patch *domain.Company, now any) []any {
	args := make([]any, 0, len(companyColumns)+2)
	args = append(args, domain.NormalizeName(patch.Name))
	for _, col := range companyColumns {
		if col.text != nil {
			args = append(args, strings.TrimSpace(*col.text(patch)))
			continue
		}
		if size := *col.size(patch); size != nil {
			args = append(args, int64(*size))
		} else {
			args = append(args, nil)
		}
	}
	return append(args, now)
}

// CompanyScanDest returns scan destinations for a row selected with
// CompanySelectColumns. Timestamps go to created and updated, whose types
// depend on the backend. The returned function copies the nullable sizes
// into c and must be called after a successful Scan.
func CompanyScanDest(c *domain.Company, created, updated any) ([]any, func()) {
	dest := make([]any, 0, len(companyColumns)+3)
	dest = append(dest, &c.Name)

	var setters []func()
	for _, col := range companyColumns {
		if col.text != nil {
			dest = append(dest, col.text(c))
			continue
		}
		var size sql.NullInt64
		target := col.size(c)
		dest = append(dest, &size)
		setters = append(setters, func() {
			if !size.Valid {
				*target = nil
				return
			}
			v := int(size.Int64)
			*target = &v
		})
	}
	dest = append(dest, created, updated)

	return dest, func() {
		for _, set := range setters {
			set()
		}
	}
}
