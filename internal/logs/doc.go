// Package logs reads daemon log output for the CLI.
//
// StreamClient pulls structured events from the daemon's `/api/logs` endpoint,
// honoring the bearer token when one is configured. Tail reads the plain log
// file directly and powers the offline fallback when the API is unreachable.
package logs
