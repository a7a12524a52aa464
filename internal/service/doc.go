// Package service contains the application use cases that sit between the
// HTTP layer and the stores.
//
// TaskService is the only writer of new tasks: it validates a request and
// inserts a pending row, and never waits for execution. Everything after
// creation is written by the worker daemon. CompanyService exposes the
// company repository for manual edits and bulk import.
//
// Services return sentinel errors for expected conditions (not found,
// invalid request) and wrap unexpected ones in ServiceError; the API layer
// maps both to status codes.
package service
