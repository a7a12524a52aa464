// Package task implements the asynchronous task subsystem: the task model and
// its forward-only state machine, the TaskStore contract shared by every
// storage backend, and the polling Daemon that claims pending tasks and
// dispatches them to registered handlers.
//
// The task table is the only coordination point between the process that
// enqueues work and the worker that executes it. Status moves strictly
// pending -> running -> completed|failed, and each task is claimed by at most
// one worker.
package task
