package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/jobsearch-api/internal/platform/postgres"
	"github.com/phrazzld/jobsearch-api/internal/store"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "companies",
		ColumnName:     "eng_size",
		ConstraintName: "companies_eng_size_check",
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		errIs  error
		errMsg string
	}{
		{name: "sql.ErrNoRows", err: sql.ErrNoRows, errIs: store.ErrNotFound, errMsg: "entity not found"},
		{name: "unique violation", err: newPgError("23505"), errIs: store.ErrDuplicate, errMsg: "entity already exists"},
		{name: "foreign key violation", err: newPgError("23503"), errIs: store.ErrInvalidEntity, errMsg: "foreign key violation"},
		{name: "check constraint violation", err: newPgError("23514"), errIs: store.ErrInvalidEntity, errMsg: "companies_eng_size_check"},
		{name: "not null violation", err: newPgError("23502"), errIs: store.ErrInvalidEntity, errMsg: "not null violation (eng_size)"},
		{name: "invalid text representation", err: newPgError("22P02"), errIs: store.ErrInvalidEntity, errMsg: "invalid value"},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", newPgError("23505")), errIs: store.ErrDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := postgres.MapError(tt.err)
			assert.ErrorIs(t, result, tt.errIs)
			if tt.errMsg != "" {
				assert.Contains(t, result.Error(), tt.errMsg)
			}
		})
	}

	t.Run("passes through unmapped errors", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, postgres.MapError(nil))

		undefinedTable := newPgError("42P01")
		assert.Same(t, undefinedTable, postgres.MapError(undefinedTable))

		generic := errors.New("connection reset by peer")
		assert.Equal(t, generic, postgres.MapError(generic))
	})
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsUniqueViolation(newPgError("23505")))
	assert.False(t, postgres.IsUniqueViolation(newPgError("23514")))
	assert.False(t, postgres.IsUniqueViolation(errors.New("23505")))

	assert.True(t, postgres.IsConstraintViolation(newPgError("23514")))
	assert.True(t, postgres.IsConstraintViolation(fmt.Errorf("wrapped: %w", newPgError("23502"))))
	assert.False(t, postgres.IsConstraintViolation(newPgError("40001")))
	assert.False(t, postgres.IsConstraintViolation(nil))
}
