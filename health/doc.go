// Package health exposes liveness and readiness probes for the server.
// Readiness aggregates reachability checks against the engine's
// external collaborators (key discovery and token endpoints).
package health
