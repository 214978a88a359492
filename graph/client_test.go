package graph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMe(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u-1","displayName":"Ada Lovelace","mail":"ada@example.com"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))

	user, err := c.Me(context.Background(), "cred-123")
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if gotAuth != "Bearer cred-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/me" {
		t.Errorf("path = %q", gotPath)
	}
	if user.DisplayName != "Ada Lovelace" {
		t.Errorf("DisplayName = %q", user.DisplayName)
	}
}

func TestJunkMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/mailFolders/junkemail/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if top := r.URL.Query().Get("$top"); top != "3" {
			t.Errorf("$top = %q, want 3", top)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[
			{"subject":"You won","receivedDateTime":"2026-03-01T10:00:00Z","from":{"emailAddress":{"address":"spam@example.net","name":"Spammer"}}},
			{"subject":"Act now","receivedDateTime":"2026-03-01T09:00:00Z","from":{"emailAddress":{"address":"junk@example.net"}}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))

	msgs, err := c.JunkMessages(context.Background(), "cred", 3)
	if err != nil {
		t.Fatalf("JunkMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Subject != "You won" {
		t.Errorf("Subject = %q", msgs[0].Subject)
	}
	if msgs[0].From.EmailAddress.Address != "spam@example.net" {
		t.Errorf("From = %q", msgs[0].From.EmailAddress.Address)
	}
}

// A non-positive page size falls back to the default.
func TestJunkMessages_DefaultTop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if top := r.URL.Query().Get("$top"); top != "5" {
			t.Errorf("$top = %q, want 5", top)
		}
		_, _ = w.Write([]byte(`{"value":[]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.JunkMessages(context.Background(), "cred", 0); err != nil {
		t.Fatalf("JunkMessages() error = %v", err)
	}
}

func TestGet_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.Me(context.Background(), "expired-cred"); err == nil {
		t.Error("Me() error = nil, want error on 401")
	}
}
