// Package resilience bounds the engine's two network suspension points.
//
// It deliberately contains only a timeout wrapper: no operation in the
// authorization path is retried, so retry and circuit-breaking helpers
// have no place here. A timed-out call is a failure, not an indefinite
// block.
package resilience
