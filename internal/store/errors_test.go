package store_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/phrazzld/jobsearch-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	assert.True(t, store.IsNotFoundError(store.ErrNotFound))
	assert.True(t, store.IsNotFoundError(store.ErrTaskNotFound))
	assert.True(t, store.IsNotFoundError(store.ErrCompanyNotFound))
	assert.True(t, store.IsNotFoundError(fmt.Errorf("lookup: %w", store.ErrCompanyNotFound)))
	assert.False(t, store.IsNotFoundError(store.ErrDuplicate))
	assert.False(t, store.IsNotFoundError(nil))
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	t.Run("with wrapped error", func(t *testing.T) {
		t.Parallel()

		err := store.NewStoreError("task", "claim", "query failed", sql.ErrConnDone)
		assert.Equal(t, "claim operation on task failed: query failed: sql: connection is already closed", err.Error())
		assert.True(t, errors.Is(err, sql.ErrConnDone))
		assert.True(t, store.IsStorageError(fmt.Errorf("outer: %w", err)))
	})

	t.Run("without wrapped error", func(t *testing.T) {
		t.Parallel()

		err := store.NewStoreError("company", "upsert", "no rows returned", nil)
		assert.Equal(t, "upsert operation on company failed: no rows returned", err.Error())
		assert.Nil(t, errors.Unwrap(err))
	})

	t.Run("plain errors are not storage errors", func(t *testing.T) {
		t.Parallel()

		assert.False(t, store.IsStorageError(errors.New("boom")))
		assert.False(t, store.IsStorageError(store.ErrTaskNotFound))
	})
}
