// Package observe provides telemetry for the authorization engine:
// structured logging, OpenTelemetry tracing for the engine's network
// calls, and metrics for authorization decisions and exchange-cache
// behavior.
//
// Credentials never appear in telemetry. Log fields and span attributes
// carry reason codes, subjects, and counts only.
package observe
