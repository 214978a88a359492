package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/toolgate/token"
)

// tokenServer fakes the provider's token endpoint. Each response mints a
// distinct access token so tests can tell cache hits from fresh calls.
func tokenServer(t *testing.T, calls *atomic.Int32, expiresIn int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)

		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != GrantTypeJWTBearer {
			t.Errorf("grant_type = %q, want %q", got, GrantTypeJWTBearer)
		}
		if got := r.PostForm.Get("requested_token_use"); got != "on_behalf_of" {
			t.Errorf("requested_token_use = %q, want on_behalf_of", got)
		}
		if r.PostForm.Get("assertion") == "" {
			t.Error("assertion is empty")
		}
		if r.PostForm.Get("client_id") == "" || r.PostForm.Get("client_secret") == "" {
			t.Error("client credentials missing from form")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "downstream-" + string(rune('a'+n-1)),
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
			"scope":        r.PostForm.Get("scope"),
		})
	}))
}

func testClaims() *token.ClaimSet {
	return &token.ClaimSet{
		Subject:   "user-1",
		Audiences: []string{"api://demo"},
		Issuer:    "https://sts.windows.net/tenant-1/",
		Scopes:    []string{"User.Read"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func newTestClient(t *testing.T, endpoint string, now func() time.Time) *Client {
	t.Helper()
	c, err := NewClient(Config{
		TokenEndpoint: endpoint,
		ClientID:      "client-1",
		ClientSecret:  "secret-1",
		SafetyMargin:  5 * time.Minute,
		Now:           now,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestExchange(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls, 3600)
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	cred, err := c.Exchange(context.Background(), testClaims(), "inbound-token", "https://graph.microsoft.com/.default")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if cred.Token == "" {
		t.Error("Token is empty")
	}
	if cred.Scope != "https://graph.microsoft.com/.default" {
		t.Errorf("Scope = %q", cred.Scope)
	}
	if remaining := time.Until(cred.ExpiresAt); remaining < 59*time.Minute {
		t.Errorf("ExpiresAt too soon: %v remaining", remaining)
	}
}

// A repeated exchange for the same subject and scope is served from
// cache; the provider sees exactly one call.
func TestExchange_Idempotent(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls, 3600)
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	cs := testClaims()

	first, err := c.Exchange(context.Background(), cs, "inbound-token", "scope-a")
	if err != nil {
		t.Fatalf("first Exchange() error = %v", err)
	}
	second, err := c.Exchange(context.Background(), cs, "inbound-token", "scope-a")
	if err != nil {
		t.Fatalf("second Exchange() error = %v", err)
	}

	if first.Token != second.Token {
		t.Error("second Exchange() returned a different credential, want cache hit")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
}

// Distinct subjects and distinct scopes each get their own exchange;
// the cache never crosses those boundaries.
func TestExchange_KeyIsolation(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls, 3600)
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	if _, err := c.Exchange(context.Background(), testClaims(), "tok", "scope-a"); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if _, err := c.Exchange(context.Background(), testClaims(), "tok", "scope-b"); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	other := testClaims()
	other.Subject = "user-2"
	if _, err := c.Exchange(context.Background(), other, "tok", "scope-a"); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	if n := calls.Load(); n != 3 {
		t.Errorf("provider calls = %d, want 3", n)
	}
}

// The cached credential counts as live only while the safety margin
// holds. With expires_in=3600 and a 5 minute margin, a lookup 3000
// seconds later still hits the cache; 3400 seconds later it does not.
func TestExchange_SafetyMargin(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls, 3600)
	defer srv.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := base
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	setNow := func(t time.Time) {
		mu.Lock()
		now = t
		mu.Unlock()
	}

	c := newTestClient(t, srv.URL, clock)
	cs := testClaims()

	if _, err := c.Exchange(context.Background(), cs, "tok", "scope-a"); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	setNow(base.Add(3000 * time.Second))
	if _, err := c.Exchange(context.Background(), cs, "tok", "scope-a"); err != nil {
		t.Fatalf("Exchange() at t+3000s error = %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("provider calls after t+3000s = %d, want 1 (cache hit)", n)
	}

	setNow(base.Add(3400 * time.Second))
	if _, err := c.Exchange(context.Background(), cs, "tok", "scope-a"); err != nil {
		t.Fatalf("Exchange() at t+3400s error = %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("provider calls after t+3400s = %d, want 2 (margin crossed)", n)
	}
}

// Concurrent misses for the same key share one provider round trip.
func TestExchange_CoalescesConcurrentMisses(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "downstream",
			"token_type":   "Bearer",
			"expires_in":   int64(3600),
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	cs := testClaims()

	const waiters = 8
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := range waiters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Exchange(context.Background(), cs, "tok", "scope-a")
		}(i)
	}

	// Give every goroutine a chance to join the flight before the
	// provider responds.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("waiter %d: %v", i, err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
}

// One waiter cancelling must not abort the shared exchange: the
// cancelled caller gets its context error, the others get the credential.
func TestExchange_CancelledWaiterDoesNotAbortFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "downstream",
			"token_type":   "Bearer",
			"expires_in":   int64(3600),
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	cs := testClaims()

	ctx, cancel := context.WithCancel(context.Background())
	cancelledErr := make(chan error, 1)
	go func() {
		_, err := c.Exchange(ctx, cs, "tok", "scope-a")
		cancelledErr <- err
	}()

	survivorCred := make(chan *Credential, 1)
	survivorErr := make(chan error, 1)
	go func() {
		cred, err := c.Exchange(context.Background(), cs, "tok", "scope-a")
		survivorCred <- cred
		survivorErr <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	if err := <-cancelledErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled waiter error = %v, want context.Canceled", err)
	}

	close(release)

	if err := <-survivorErr; err != nil {
		t.Fatalf("surviving waiter error = %v", err)
	}
	if cred := <-survivorCred; cred == nil || cred.Token != "downstream" {
		t.Error("surviving waiter did not receive the credential")
	}
}

func TestExchange_ProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "AADSTS50013: assertion is invalid",
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	_, err := c.Exchange(context.Background(), testClaims(), "tok", "scope-a")
	if !errors.Is(err, ErrExchangeFailed) {
		t.Fatalf("Exchange() error = %v, want ErrExchangeFailed", err)
	}

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error chain missing *ProviderError: %v", err)
	}
	if pe.Code != "invalid_grant" {
		t.Errorf("Code = %q, want invalid_grant", pe.Code)
	}
	if pe.Status != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", pe.Status)
	}
}

// A failed exchange is not cached; the next request tries again.
func TestExchange_FailureNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "downstream",
			"token_type":   "Bearer",
			"expires_in":   int64(3600),
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	cs := testClaims()

	if _, err := c.Exchange(context.Background(), cs, "tok", "scope-a"); err == nil {
		t.Fatal("first Exchange() succeeded, want failure")
	}
	if _, err := c.Exchange(context.Background(), cs, "tok", "scope-a"); err != nil {
		t.Fatalf("second Exchange() error = %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("provider calls = %d, want 2", n)
	}
}

func TestExchange_MissingSubject(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid", nil)

	_, err := c.Exchange(context.Background(), &token.ClaimSet{}, "tok", "scope-a")
	if !errors.Is(err, ErrExchangeFailed) {
		t.Errorf("Exchange() error = %v, want ErrExchangeFailed", err)
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(Config{ClientID: "a", ClientSecret: "b"}); err == nil {
		t.Error("NewClient() without endpoint should fail")
	}
	if _, err := NewClient(Config{TokenEndpoint: "https://t.example/token"}); err == nil {
		t.Error("NewClient() without client credentials should fail")
	}
}
