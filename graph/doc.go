// Package graph is a minimal client for the downstream Microsoft Graph
// API, used by tool bodies with the credential the gate yielded. The
// authorization engine itself never calls this package.
package graph
