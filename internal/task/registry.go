package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Handler executes one task type. The returned payload is stored as the
// task's result; a returned error fails the task.
type Handler interface {
	Handle(ctx context.Context, t *Task) (json.RawMessage, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, t *Task) (json.RawMessage, error)

// Handle calls f(ctx, t).
func (f HandlerFunc) Handle(ctx context.Context, t *Task) (json.RawMessage, error) {
	return f(ctx, t)
}

// Registry maps task types to the handlers that execute them.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Type]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Type]Handler)}
}

// Register binds a handler to a task type. Registering the same type twice
// is a programming error and returns an error.
func (r *Registry) Register(taskType Type, h Handler) error {
	if taskType == "" {
		return fmt.Errorf("%w: empty type", ErrUnknownTaskType)
	}
	if h == nil {
		return fmt.Errorf("nil handler for task type %q", taskType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[taskType]; exists {
		return fmt.Errorf("handler already registered for task type %q", taskType)
	}
	r.handlers[taskType] = h
	return nil
}

// Lookup returns the handler for taskType.
func (r *Registry) Lookup(taskType Type) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskType]
	return h, ok
}

// Has reports whether taskType has a handler.
func (r *Registry) Has(taskType Type) bool {
	_, ok := r.Lookup(taskType)
	return ok
}

// Types returns the registered task types in sorted order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]Type, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
