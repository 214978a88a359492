// Package gate is the single authorization entry point invoked before
// any tool body executes.
//
// Authorize runs parse, then validation, then either a delegated
// exchange or a pass-through of the validated credential, and yields a
// Grant carrying the downstream credential. Any failure collapses to a
// Denial with an enumerated reason; the tool body never runs on a
// denial. The gate holds no per-request state beyond the exchange
// client's cache.
package gate
