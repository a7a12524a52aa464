// Package postgres implements the task and company stores on PostgreSQL,
// accessed through the pgx stdlib driver. Claims use FOR UPDATE SKIP LOCKED so
// that any number of workers can poll one tasks table without handing the
// same row to two of them.
package postgres
