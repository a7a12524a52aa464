// Package database opens the configured SQL backend and applies its schema.
// Postgres (through the pgx stdlib driver) serves shared deployments; SQLite
// (through the pure-Go modernc driver) is the default single-machine backend.
// Both schemas are embedded goose migrations.
package database
