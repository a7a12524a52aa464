// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It acts as an adapter between external clients
// and the internal application services, translating HTTP concerns to
// business operations.
//
// Task creation endpoints answer 202 Accepted as soon as the task row
// exists; clients poll GET /api/tasks/{id} until the task is terminal.
package api
