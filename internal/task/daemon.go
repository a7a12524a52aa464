package task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// DaemonConfig holds configuration for the worker daemon.
type DaemonConfig struct {
	// PollInterval is how long a loop waits after finding nothing to claim.
	PollInterval time.Duration

	// ErrorBackoff is how long a loop waits after a storage error.
	ErrorBackoff time.Duration

	// WriteTimeout bounds the result write-back, which runs detached from
	// the daemon's context so that stopping never abandons a claimed task.
	WriteTimeout time.Duration

	// StaleTaskTimeout fails running tasks that have not been updated for
	// this long. Zero disables the check.
	StaleTaskTimeout time.Duration

	// StaleTaskCheckInterval defines how often to look for stale tasks.
	// If zero, defaults to one minute.
	StaleTaskCheckInterval time.Duration
}

// DefaultDaemonConfig returns a DaemonConfig with reasonable defaults.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		PollInterval:           time.Second,
		ErrorBackoff:           5 * time.Second,
		WriteTimeout:           10 * time.Second,
		StaleTaskCheckInterval: time.Minute,
	}
}

// StaleTaskMessage is recorded on tasks failed by the stale task check.
const StaleTaskMessage = "task abandoned: no progress before stale task timeout"

// Daemon polls the task store and dispatches claimed tasks to handlers.
// It holds no task state of its own; every run is reconstructed from the
// store.
type Daemon struct {
	store    TaskStore
	registry *Registry
	config   DaemonConfig
	logger   *slog.Logger
}

// NewDaemon creates a Daemon. Zero durations in config fall back to the
// defaults from DefaultDaemonConfig.
func NewDaemon(store TaskStore, registry *Registry, config DaemonConfig, logger *slog.Logger) *Daemon {
	defaults := DefaultDaemonConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = defaults.ErrorBackoff
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.StaleTaskCheckInterval <= 0 {
		config.StaleTaskCheckInterval = defaults.StaleTaskCheckInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Daemon{
		store:    store,
		registry: registry,
		config:   config,
		logger:   logger.With("component", "task_daemon"),
	}
}

// Run starts one polling loop per registered task type and blocks until ctx
// is cancelled and every loop has finished its in-flight task.
func (d *Daemon) Run(ctx context.Context) error {
	types := d.registry.Types()
	if len(types) == 0 {
		return ErrNoHandlers
	}

	d.logger.Info("starting task daemon",
		"task_types", types,
		"poll_interval", d.config.PollInterval,
		"error_backoff", d.config.ErrorBackoff)

	var wg sync.WaitGroup
	for _, taskType := range types {
		wg.Add(1)
		go func(taskType Type) {
			defer wg.Done()
			d.loop(ctx, taskType)
		}(taskType)
	}

	if d.config.StaleTaskTimeout > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.staleTaskMonitor(ctx)
		}()
	}

	wg.Wait()
	d.logger.Info("task daemon stopped")
	return nil
}

// Once claims and processes at most one task of taskType. It reports whether
// a task was processed.
func (d *Daemon) Once(ctx context.Context, taskType Type) (bool, error) {
	if !d.registry.Has(taskType) {
		return false, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
	return d.processNext(ctx, taskType)
}

// loop polls for a single task type until ctx is cancelled.
func (d *Daemon) loop(ctx context.Context, taskType Type) {
	log := d.logger.With("task_type", taskType)
	log.Debug("starting task loop")

	for {
		if ctx.Err() != nil {
			log.Debug("stopping task loop")
			return
		}

		processed, err := d.processNext(ctx, taskType)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				log.Debug("stopping task loop")
				return
			}
			log.Error("task loop error, backing off",
				"error", err,
				"backoff", d.config.ErrorBackoff)
			if !sleep(ctx, d.config.ErrorBackoff) {
				return
			}
		case !processed:
			if !sleep(ctx, d.config.PollInterval) {
				return
			}
		}
	}
}

// processNext claims the next pending task of taskType, runs its handler and
// records the outcome.
func (d *Daemon) processNext(ctx context.Context, taskType Type) (bool, error) {
	handler, ok := d.registry.Lookup(taskType)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	// Once the claim has moved a row to running, only this daemon can finish
	// it, so the claim must not be interrupted between the update and the
	// read of the claimed row.
	claimCtx, cancelClaim := context.WithTimeout(context.WithoutCancel(ctx), d.config.WriteTimeout)
	t, err := d.store.ClaimNext(claimCtx, taskType)
	cancelClaim()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s task: %w", taskType, err)
	}
	if t == nil {
		return false, nil
	}

	// A claimed task must reach a terminal state even if the daemon is
	// stopping, so the handler and write-back ignore ctx cancellation.
	runCtx := context.WithoutCancel(ctx)
	log := d.logger.With(
		"task_id", t.ID,
		"task_type", t.Type,
		"subject_key", t.SubjectKey,
	)
	log.Info("processing task")
	start := time.Now()

	result, handlerErr := d.dispatch(runCtx, handler, t)
	if handlerErr == nil {
		result = normalizeResult(result)
		if err := CheckResult(result); err != nil {
			handlerErr = NewCapabilityError(t.Type, fmt.Errorf("handler returned an unusable result: %w", err))
		}
	}

	writeCtx, cancel := context.WithTimeout(runCtx, d.config.WriteTimeout)
	defer cancel()

	if handlerErr != nil {
		message := handlerErr.Error()
		if strings.TrimSpace(message) == "" {
			message = "task failed"
		}
		log.Warn("task execution failed",
			"error", handlerErr,
			"duration", time.Since(start))
		if err := d.store.Fail(writeCtx, t.ID, message); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				log.Error("task left running state before failure was recorded", "error", err)
			}
			return true, fmt.Errorf("failed to record task failure: %w", err)
		}
		return true, nil
	}

	if err := d.store.Complete(writeCtx, t.ID, result); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			log.Error("task left running state before completion was recorded", "error", err)
		}
		return true, fmt.Errorf("failed to record task result: %w", err)
	}

	log.Info("task completed successfully", "duration", time.Since(start))
	return true, nil
}

// normalizeResult stores handlers that report nothing as an empty object.
func normalizeResult(result json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(result)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return json.RawMessage("{}")
	}
	return result
}

// dispatch runs the handler, converting panics into task failures.
func (d *Daemon) dispatch(ctx context.Context, handler Handler, t *Task) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("task handler panicked",
				"task_id", t.ID,
				"task_type", t.Type,
				"panic", r,
				"stack", string(debug.Stack()))
			result = nil
			err = NewCapabilityError(t.Type, fmt.Errorf("handler panic: %v", r))
		}
	}()

	result, err = handler.Handle(ctx, t.Clone())
	if err != nil {
		var capErr *CapabilityError
		if !errors.As(err, &capErr) {
			err = NewCapabilityError(t.Type, err)
		}
	}
	return result, err
}

// staleTaskMonitor periodically fails tasks that have been running for too
// long. Tasks only move forward, so a stale task is failed rather than
// returned to pending.
func (d *Daemon) staleTaskMonitor(ctx context.Context) {
	ticker := time.NewTicker(d.config.StaleTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.failStaleTasks(ctx)
		}
	}
}

func (d *Daemon) failStaleTasks(ctx context.Context) {
	count, err := d.store.FailStale(ctx, d.config.StaleTaskTimeout, StaleTaskMessage)
	if err != nil {
		d.logger.Error("failed to check for stale tasks", "error", err)
		return
	}
	if count > 0 {
		d.logger.Warn("failed stale tasks",
			"count", count,
			"stale_task_timeout", d.config.StaleTaskTimeout)
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
