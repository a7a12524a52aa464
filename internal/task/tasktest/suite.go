// Package tasktest provides a behavioural test suite that every TaskStore
// implementation runs against, so the in-memory, SQLite and Postgres stores
// are held to the same contract.
package tasktest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/jobsearch-api/internal/store"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// Factory returns a fresh, empty store for a single subtest.
type Factory func(t *testing.T) task.TaskStore

// RunStoreTests runs the full TaskStore contract against stores built by newStore.
func RunStoreTests(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("GetUnknown", func(t *testing.T) { testGetUnknown(t, newStore(t)) })
	t.Run("ClaimEmpty", func(t *testing.T) { testClaimEmpty(t, newStore(t)) })
	t.Run("ClaimOrder", func(t *testing.T) { testClaimOrder(t, newStore(t)) })
	t.Run("ClaimByType", func(t *testing.T) { testClaimByType(t, newStore(t)) })
	t.Run("ConcurrentClaim", func(t *testing.T) { testConcurrentClaim(t, newStore(t)) })
	t.Run("Complete", func(t *testing.T) { testComplete(t, newStore(t)) })
	t.Run("Fail", func(t *testing.T) { testFail(t, newStore(t)) })
	t.Run("InvalidTransitions", func(t *testing.T) { testInvalidTransitions(t, newStore(t)) })
	t.Run("UnknownTransitions", func(t *testing.T) { testUnknownTransitions(t, newStore(t)) })
	t.Run("EmptyOutcomes", func(t *testing.T) { testEmptyOutcomes(t, newStore(t)) })
	t.Run("IndependentTasks", func(t *testing.T) { testIndependentTasks(t, newStore(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("FailStale", func(t *testing.T) { testFailStale(t, newStore(t)) })
}

// createSpaced creates a task and waits briefly so consecutive tasks get
// distinct creation times on every backend.
func createSpaced(t *testing.T, s task.TaskStore, taskType task.Type, subject string) *task.Task {
	t.Helper()
	created, err := s.Create(context.Background(), taskType, subject, nil)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	return created
}

func claim(t *testing.T, s task.TaskStore, taskType task.Type) *task.Task {
	t.Helper()
	claimed, err := s.ClaimNext(context.Background(), taskType)
	require.NoError(t, err)
	require.NotNil(t, claimed, "expected a pending %s task", taskType)
	return claimed
}

func testCreateAndGet(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	params := json.RawMessage(`{"context":"be brief"}`)

	created, err := s.Create(ctx, task.TypeGenerateMessage, "Acme", params)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, created.Status)
	assert.Equal(t, task.TypeGenerateMessage, created.Type)
	assert.Equal(t, "Acme", created.SubjectKey)
	assert.Empty(t, created.Result)
	assert.Empty(t, created.Error)

	fetched, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, task.StatusPending, fetched.Status)
	assert.JSONEq(t, string(params), string(fetched.Params))
	assert.WithinDuration(t, created.CreatedAt, fetched.CreatedAt, time.Millisecond)

	other, err := s.Create(ctx, task.TypeGenerateMessage, "Acme", params)
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, other.ID)
}

func testGetUnknown(t *testing.T, s task.TaskStore) {
	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testClaimEmpty(t *testing.T, s task.TaskStore) {
	claimed, err := s.ClaimNext(context.Background(), task.TypeResearch)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func testClaimOrder(t *testing.T, s task.TaskStore) {
	first := createSpaced(t, s, task.TypeResearch, "First")
	second := createSpaced(t, s, task.TypeResearch, "Second")
	third := createSpaced(t, s, task.TypeResearch, "Third")

	for _, want := range []*task.Task{first, second, third} {
		got := claim(t, s, task.TypeResearch)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, task.StatusRunning, got.Status)
	}

	claimed, err := s.ClaimNext(context.Background(), task.TypeResearch)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func testClaimByType(t *testing.T, s task.TaskStore) {
	research := createSpaced(t, s, task.TypeResearch, "Acme")
	reply := createSpaced(t, s, task.TypeGenerateMessage, "Acme")

	got := claim(t, s, task.TypeGenerateMessage)
	assert.Equal(t, reply.ID, got.ID)

	fetched, err := s.Get(context.Background(), research.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, fetched.Status, "other types stay pending")
}

func testConcurrentClaim(t *testing.T, s task.TaskStore) {
	const tasks = 20
	const workers = 8

	ctx := context.Background()
	for i := 0; i < tasks; i++ {
		_, err := s.Create(ctx, task.TypeResearch, "Acme", nil)
		require.NoError(t, err)
	}

	var (
		mu      sync.Mutex
		claimed = make(map[uuid.UUID]int)
		wg      sync.WaitGroup
		errs    = make(chan error, workers)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				got, err := s.ClaimNext(ctx, task.TypeResearch)
				if err != nil {
					errs <- err
					return
				}
				if got == nil {
					return
				}
				mu.Lock()
				claimed[got.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, claimed, tasks)
	for id, count := range claimed {
		assert.Equal(t, 1, count, "task %s claimed more than once", id)
	}
}

func testComplete(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	created := createSpaced(t, s, task.TypeResearch, "Acme")
	claim(t, s, task.TypeResearch)

	result := json.RawMessage(`{"name":"Acme","type":"fintech"}`)
	require.NoError(t, s.Complete(ctx, created.ID, result))

	// Terminal reads are stable.
	for i := 0; i < 2; i++ {
		fetched, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, task.StatusCompleted, fetched.Status)
		assert.JSONEq(t, string(result), string(fetched.Result))
		assert.Empty(t, fetched.Error)
		assert.False(t, fetched.UpdatedAt.Before(fetched.CreatedAt))
	}
}

func testFail(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	created := createSpaced(t, s, task.TypeResearch, "Acme")
	claim(t, s, task.TypeResearch)

	require.NoError(t, s.Fail(ctx, created.ID, "timeout"))

	fetched, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, fetched.Status)
	assert.Equal(t, "timeout", fetched.Error)
	assert.Empty(t, fetched.Result)
}

func testInvalidTransitions(t *testing.T, s task.TaskStore) {
	ctx := context.Background()

	pending := createSpaced(t, s, task.TypeGenerateMessage, "Pending")
	assert.ErrorIs(t, s.Complete(ctx, pending.ID, json.RawMessage(`{}`)), task.ErrInvalidTransition)
	assert.ErrorIs(t, s.Fail(ctx, pending.ID, "boom"), task.ErrInvalidTransition)

	fetched, err := s.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, fetched.Status)
	assert.Empty(t, fetched.Result)
	assert.Empty(t, fetched.Error)

	done := createSpaced(t, s, task.TypeResearch, "Done")
	claim(t, s, task.TypeResearch)
	require.NoError(t, s.Complete(ctx, done.ID, json.RawMessage(`{"ok":true}`)))

	assert.ErrorIs(t, s.Fail(ctx, done.ID, "late failure"), task.ErrInvalidTransition)
	assert.ErrorIs(t, s.Complete(ctx, done.ID, json.RawMessage(`{"ok":false}`)), task.ErrInvalidTransition)

	fetched, err = s.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, fetched.Status)
	assert.JSONEq(t, `{"ok":true}`, string(fetched.Result))
	assert.Empty(t, fetched.Error)
}

func testUnknownTransitions(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	assert.ErrorIs(t, s.Complete(ctx, uuid.New(), json.RawMessage(`{}`)), store.ErrTaskNotFound)
	assert.ErrorIs(t, s.Fail(ctx, uuid.New(), "boom"), store.ErrTaskNotFound)
}

// testEmptyOutcomes checks that a terminal state always carries exactly one
// of result or error.
func testEmptyOutcomes(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	running := createSpaced(t, s, task.TypeResearch, "Acme")
	claim(t, s, task.TypeResearch)

	for _, result := range []json.RawMessage{nil, json.RawMessage(``), json.RawMessage(` null `), json.RawMessage(`{"name":`)} {
		assert.ErrorIs(t, s.Complete(ctx, running.ID, result), task.ErrInvalidOutcome, "result %q", result)
	}
	for _, message := range []string{"", "   \n"} {
		assert.ErrorIs(t, s.Fail(ctx, running.ID, message), task.ErrInvalidOutcome, "message %q", message)
	}

	fetched, err := s.Get(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, fetched.Status)
	assert.Empty(t, fetched.Result)
	assert.Empty(t, fetched.Error)

	require.NoError(t, s.Fail(ctx, running.ID, "research capability unavailable"))
	fetched, err = s.Get(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, fetched.Status)
	assert.Equal(t, "research capability unavailable", fetched.Error)
	assert.Empty(t, fetched.Result)
}

func testIndependentTasks(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	a := createSpaced(t, s, task.TypeResearch, "Acme")
	b := createSpaced(t, s, task.TypeResearch, "Acme")

	assert.Equal(t, a.ID, claim(t, s, task.TypeResearch).ID)
	require.NoError(t, s.Fail(ctx, a.ID, "first attempt failed"))

	assert.Equal(t, b.ID, claim(t, s, task.TypeResearch).ID)
	require.NoError(t, s.Complete(ctx, b.ID, json.RawMessage(`{"name":"Acme"}`)))

	gotA, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, gotA.Status)
	assert.Equal(t, task.StatusCompleted, gotB.Status)
}

func testList(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	a := createSpaced(t, s, task.TypeResearch, "Acme")
	b := createSpaced(t, s, task.TypeGenerateMessage, "Acme")
	c := createSpaced(t, s, task.TypeResearch, "Globex")
	claim(t, s, task.TypeResearch) // a -> running

	all, err := s.List(ctx, task.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{c.ID, b.ID, a.ID}, ids(all), "newest first")

	acme, err := s.List(ctx, task.ListFilter{SubjectKey: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID, a.ID}, ids(acme))

	running, err := s.List(ctx, task.ListFilter{Status: task.StatusRunning})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID}, ids(running))

	research, err := s.List(ctx, task.ListFilter{Type: task.TypeResearch, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{c.ID}, ids(research))
}

func testFailStale(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	stale := createSpaced(t, s, task.TypeResearch, "Stale")
	pending := createSpaced(t, s, task.TypeGenerateMessage, "Pending")
	claim(t, s, task.TypeResearch)

	count, err := s.FailStale(ctx, time.Hour, "abandoned")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "fresh running tasks are left alone")

	time.Sleep(20 * time.Millisecond)
	count, err = s.FailStale(ctx, 10*time.Millisecond, "abandoned")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Equal(t, "abandoned", got.Error)

	got, err = s.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, got.Status, "pending tasks are never reaped")
}

func ids(tasks []*task.Task) []uuid.UUID {
	out := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
