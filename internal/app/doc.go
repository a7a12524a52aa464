// Package app wires configuration into stores, services and the task daemon.
// The server, the worker and jobsearchctl share it so every process opens the
// same backend the same way.
package app
