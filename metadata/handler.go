package metadata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// WellKnownPath is where the protected-resource metadata is served.
const WellKnownPath = "/.well-known/oauth-protected-resource"

// Config describes the deployment's protected resource.
type Config struct {
	// Resource is the resource identifier (the server's base URL).
	Resource string

	// AuthorizationServers are the discovery URLs of the authorization
	// servers callers may obtain credentials from.
	AuthorizationServers []string

	// ScopesSupported lists the scopes this resource understands.
	ScopesSupported []string
}

// Document is the RFC 9728 protected-resource metadata shape.
type Document struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
	ScopesSupported      []string `json:"scopes_supported,omitempty"`
}

// Document returns the metadata document derived from the configuration.
func (c Config) Document() Document {
	return Document{
		Resource:             c.Resource,
		AuthorizationServers: c.AuthorizationServers,
		ScopesSupported:      c.ScopesSupported,
	}
}

// MetadataURL returns the absolute URL of the metadata document.
func (c Config) MetadataURL() string {
	return strings.TrimRight(c.Resource, "/") + WellKnownPath
}

// WWWAuthenticate returns the challenge value a denial response should
// carry so clients can discover the metadata document (RFC 6750 + 9728).
func (c Config) WWWAuthenticate() string {
	return fmt.Sprintf("Bearer resource_metadata=%q", c.MetadataURL())
}

// NewHandler serves the metadata document. GET (and HEAD) only.
func NewHandler(cfg Config) http.Handler {
	doc := cfg.Document()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if r.Method == http.MethodHead {
			return
		}
		_ = json.NewEncoder(w).Encode(doc)
	})
}
