// Package config handles configuration loading, parsing, and validation
// from defaults, an optional YAML file, and JOBSEARCH_ environment variables.
// The server, the worker, and the jobsearchctl client share one Config type;
// each reads only the sections it needs.
package config
