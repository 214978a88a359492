package metadata

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testMetadataConfig() Config {
	return Config{
		Resource:             "https://tools.example.com",
		AuthorizationServers: []string{"https://login.example.com/tenant/v2.0"},
		ScopesSupported:      []string{"User.Read", "Mail.Read"},
	}
}

func TestHandler_ServesDocument(t *testing.T) {
	h := NewHandler(testMetadataConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, WellKnownPath, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc == "" {
		t.Error("Cache-Control header missing")
	}

	var doc Document
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if doc.Resource != "https://tools.example.com" {
		t.Errorf("resource = %q", doc.Resource)
	}
	if len(doc.AuthorizationServers) != 1 || doc.AuthorizationServers[0] != "https://login.example.com/tenant/v2.0" {
		t.Errorf("authorization_servers = %v", doc.AuthorizationServers)
	}
	if len(doc.ScopesSupported) != 2 {
		t.Errorf("scopes_supported = %v", doc.ScopesSupported)
	}
}

func TestHandler_Methods(t *testing.T) {
	h := NewHandler(testMetadataConfig())

	t.Run("HEAD", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, WellKnownPath, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Error("HEAD response has a body")
		}
	})

	t.Run("POST", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, WellKnownPath, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
		if allow := rec.Header().Get("Allow"); allow != "GET, HEAD" {
			t.Errorf("Allow = %q", allow)
		}
	})
}

func TestMetadataURL(t *testing.T) {
	cfg := testMetadataConfig()
	want := "https://tools.example.com/.well-known/oauth-protected-resource"
	if got := cfg.MetadataURL(); got != want {
		t.Errorf("MetadataURL() = %q, want %q", got, want)
	}

	// A trailing slash on the resource must not double up.
	cfg.Resource = "https://tools.example.com/"
	if got := cfg.MetadataURL(); got != want {
		t.Errorf("MetadataURL() with trailing slash = %q, want %q", got, want)
	}
}

func TestWWWAuthenticate(t *testing.T) {
	got := testMetadataConfig().WWWAuthenticate()
	want := `Bearer resource_metadata="https://tools.example.com/.well-known/oauth-protected-resource"`
	if got != want {
		t.Errorf("WWWAuthenticate() = %q, want %q", got, want)
	}
}
