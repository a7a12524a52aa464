// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, so the task daemon and the services can run
// against PostgreSQL, SQLite or an in-memory implementation alike.
package store
