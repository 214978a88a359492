// Package secret resolves secret references in configuration values.
//
// A reference is a string of the form "env:NAME" or "file:/path"; any
// other value is returned as-is. This keeps raw client secrets out of
// flags and config files: deployments point at an environment variable
// or a mounted secrets file instead.
package secret
