// Package client is an HTTP client for the jobsearch API. Besides thin
// wrappers around each endpoint it provides Wait, which polls a task until
// it reaches a terminal state. Cancelling a wait never cancels the task.
package client
