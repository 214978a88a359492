// Package metadata serves the protected-resource descriptor (RFC 9728)
// that tells callers how to obtain an acceptable credential. The
// document is wholly derived from static configuration; nothing here
// touches the authorization path.
package metadata
