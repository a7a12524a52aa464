// Package sqlite implements the task and company stores on SQLite through
// the pure-Go modernc.org/sqlite driver. It is the default backend for a
// single machine, where the API server and the worker share one database
// file.
package sqlite
