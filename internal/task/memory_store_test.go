package task_test

import (
	"testing"

	"github.com/phrazzld/jobsearch-api/internal/task"
	"github.com/phrazzld/jobsearch-api/internal/task/tasktest"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	tasktest.RunStoreTests(t, func(t *testing.T) task.TaskStore {
		return task.NewMemoryStore()
	})
}

func TestMockTaskStore_DelegatesByDefault(t *testing.T) {
	t.Parallel()

	tasktest.RunStoreTests(t, func(t *testing.T) task.TaskStore {
		return task.NewMockTaskStore()
	})
}
