package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/jobsearch-api/internal/store"
)

// MemoryStore is a TaskStore kept in process memory. A single mutex makes
// every operation atomic, which gives ClaimNext the same exclusivity the SQL
// stores get from their conditional updates. It backs tests and the
// single-process mode of jobsearchctl.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[uuid.UUID]*Task),
		now:   time.Now,
	}
}

// SetClock replaces the store's time source. Tests use it to control
// ordering and staleness.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Create implements TaskStore.
func (s *MemoryStore) Create(
	ctx context.Context,
	taskType Type,
	subjectKey string,
	params json.RawMessage,
) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := New(taskType, subjectKey, params, s.now())
	s.tasks[t.ID] = t.Clone()
	return t, nil
}

// Get implements TaskStore.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// ClaimNext implements TaskStore.
func (s *MemoryStore) ClaimNext(ctx context.Context, taskType Type) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *Task
	for _, t := range s.tasks {
		if t.Type != taskType || t.Status != StatusPending {
			continue
		}
		if next == nil || claimsBefore(t, next) {
			next = t
		}
	}
	if next == nil {
		return nil, nil
	}

	next.Status = StatusRunning
	next.UpdatedAt = s.now().UTC()
	return next.Clone(), nil
}

// Complete implements TaskStore.
func (s *MemoryStore) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if err := CheckResult(result); err != nil {
		return err
	}
	return s.finish(id, StatusCompleted, func(t *Task) {
		t.Result = append(json.RawMessage(nil), result...)
	})
}

// Fail implements TaskStore.
func (s *MemoryStore) Fail(ctx context.Context, id uuid.UUID, message string) error {
	if err := CheckFailureMessage(message); err != nil {
		return err
	}
	return s.finish(id, StatusFailed, func(t *Task) {
		t.Error = message
	})
}

func (s *MemoryStore) finish(id uuid.UUID, next Status, apply func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if err := CheckTransition(t.Status, next); err != nil {
		return fmt.Errorf("task %s: %w", id, err)
	}

	apply(t)
	t.Status = next
	t.UpdatedAt = s.now().UTC()
	return nil
}

// List implements TaskStore.
func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]*Task, 0)
	for _, t := range s.tasks {
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.SubjectKey != "" && t.SubjectKey != filter.SubjectKey {
			continue
		}
		matches = append(matches, t.Clone())
	}

	// Newest first: reverse claim order.
	sort.Slice(matches, func(i, j int) bool { return claimsBefore(matches[j], matches[i]) })

	if limit := filter.EffectiveLimit(); len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// FailStale implements TaskStore.
func (s *MemoryStore) FailStale(ctx context.Context, olderThan time.Duration, message string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	cutoff := now.Add(-olderThan)
	count := 0
	for _, t := range s.tasks {
		if t.Status == StatusRunning && t.UpdatedAt.Before(cutoff) {
			t.Status = StatusFailed
			t.Error = message
			t.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

// claimsBefore orders tasks by creation time, breaking ties by id.
func claimsBefore(a, b *Task) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}
