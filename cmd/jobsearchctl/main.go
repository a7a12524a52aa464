// Command jobsearchctl is the command-line client for the jobsearch API. It
// enqueues research and reply tasks, polls them to completion and manages
// company records, the database schema and a foreground worker.
package main

import "github.com/phrazzld/jobsearch-api/cmd/jobsearchctl/commands"

func main() {
	commands.Execute()
}
