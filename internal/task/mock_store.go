package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MockTaskStore implements the TaskStore interface for testing. Every method
// delegates to an embedded MemoryStore unless the matching ...Fn hook is
// set, which lets tests inject storage failures for a single operation.
type MockTaskStore struct {
	*MemoryStore

	CreateFn    func(ctx context.Context, taskType Type, subjectKey string, params json.RawMessage) (*Task, error)
	GetFn       func(ctx context.Context, id uuid.UUID) (*Task, error)
	ClaimNextFn func(ctx context.Context, taskType Type) (*Task, error)
	CompleteFn  func(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	FailFn      func(ctx context.Context, id uuid.UUID, message string) error
	ListFn      func(ctx context.Context, filter ListFilter) ([]*Task, error)
	FailStaleFn func(ctx context.Context, olderThan time.Duration, message string) (int, error)
}

// NewMockTaskStore creates a new MockTaskStore backed by an empty MemoryStore.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{MemoryStore: NewMemoryStore()}
}

// Create implements TaskStore.
func (m *MockTaskStore) Create(
	ctx context.Context,
	taskType Type,
	subjectKey string,
	params json.RawMessage,
) (*Task, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, taskType, subjectKey, params)
	}
	return m.MemoryStore.Create(ctx, taskType, subjectKey, params)
}

// Get implements TaskStore.
func (m *MockTaskStore) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	return m.MemoryStore.Get(ctx, id)
}

// ClaimNext implements TaskStore.
func (m *MockTaskStore) ClaimNext(ctx context.Context, taskType Type) (*Task, error) {
	if m.ClaimNextFn != nil {
		return m.ClaimNextFn(ctx, taskType)
	}
	return m.MemoryStore.ClaimNext(ctx, taskType)
}

// Complete implements TaskStore.
func (m *MockTaskStore) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, id, result)
	}
	return m.MemoryStore.Complete(ctx, id, result)
}

// Fail implements TaskStore.
func (m *MockTaskStore) Fail(ctx context.Context, id uuid.UUID, message string) error {
	if m.FailFn != nil {
		return m.FailFn(ctx, id, message)
	}
	return m.MemoryStore.Fail(ctx, id, message)
}

// List implements TaskStore.
func (m *MockTaskStore) List(ctx context.Context, filter ListFilter) ([]*Task, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	return m.MemoryStore.List(ctx, filter)
}

// FailStale implements TaskStore.
func (m *MockTaskStore) FailStale(ctx context.Context, olderThan time.Duration, message string) (int, error) {
	if m.FailStaleFn != nil {
		return m.FailStaleFn(ctx, olderThan, message)
	}
	return m.MemoryStore.FailStale(ctx, olderThan, message)
}
