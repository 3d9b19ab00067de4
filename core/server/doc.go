// Package server holds the HTTP status surface.
//
// The service is CLI-driven; the server only exposes a liveness endpoint and
// a sync health summary for operators and probes. It is not an API for
// mutating packs.
//
// # Configuration
//
// The Config struct defines the HTTP port and an optional API key guarding
// the status endpoints.
package server
