package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/toolgate/observe"
	"github.com/jonwraymond/toolgate/resilience"
	"github.com/jonwraymond/toolgate/token"
)

// GrantTypeJWTBearer is the on-behalf-of grant type: the inbound
// credential is presented as an assertion alongside the service's own
// client credentials.
const GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// requestedTokenUse marks the grant as a delegated exchange rather than
// a first-party assertion.
const requestedTokenUse = "on_behalf_of"

// ErrExchangeFailed indicates the provider rejected the exchange or the
// call could not complete. It is terminal for the current request.
var ErrExchangeFailed = errors.New("exchange: token exchange failed")

// ProviderError carries the provider's error response. It is preserved
// for observability; callers should not surface it beyond the gate's
// reason codes.
type ProviderError struct {
	Code        string
	Description string
	Status      int
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("provider rejected exchange: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("provider rejected exchange: %s (status %d)", e.Code, e.Status)
}

// Credential is a downstream credential obtained from the provider.
// It is ephemeral: held in memory for at most its cache window and
// never persisted or logged.
type Credential struct {
	// Token is the downstream bearer credential.
	Token string

	// Scope is the scope the credential was requested for.
	Scope string

	// ExpiresAt is when the provider says the credential expires.
	ExpiresAt time.Time

	// IssuedAt is when this process obtained the credential.
	IssuedAt time.Time
}

// Config configures the exchange client.
type Config struct {
	// TokenEndpoint is the provider's token endpoint.
	TokenEndpoint string

	// ClientID and ClientSecret are the service's own credentials for
	// the exchange grant.
	ClientID     string
	ClientSecret string

	// SafetyMargin invalidates cached credentials this long before
	// their actual expiry. Default: 5 minutes.
	SafetyMargin time.Duration

	// Timeout bounds a single exchange round trip. Default: 10 seconds.
	Timeout time.Duration

	// HTTPClient is the client used for exchange calls. If nil, a
	// default client is used.
	HTTPClient *http.Client

	// Logger is optional; defaults to a no-op logger.
	Logger observe.Logger

	// Metrics is optional; nil records nothing.
	Metrics *observe.EngineMetrics

	// Tracer is optional; defaults to a no-op tracer.
	Tracer trace.Tracer

	// Now is the clock used for cache liveness. Default: time.Now.
	Now func() time.Time
}

// Client performs on-behalf-of exchanges with caching and per-key
// in-flight coalescing.
type Client struct {
	cfg   Config
	cache *credentialCache
	group singleflight.Group
}

// NewClient creates an exchange client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.TokenEndpoint == "" {
		return nil, errors.New("exchange: token endpoint is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("exchange: client credentials are required")
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &Client{
		cfg:   cfg,
		cache: newCredentialCache(),
	}, nil
}

func (c *Client) now() time.Time {
	if c.cfg.Now != nil {
		return c.cfg.Now()
	}
	return time.Now()
}

// Exchange returns a downstream credential for the given subject and
// target scope, from cache when a live entry exists, otherwise by
// redeeming the raw inbound credential at the provider.
//
// Concurrent misses for the same (subject, scope) key share one provider
// call. The in-flight exchange runs on a context detached from any
// single waiter, so one waiter's cancellation cannot abort the exchange
// for the others; the waiter itself still unblocks on its own context.
func (c *Client) Exchange(ctx context.Context, cs *token.ClaimSet, raw, scope string) (*Credential, error) {
	if cs == nil || cs.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrExchangeFailed)
	}

	key := cacheKey(cs.Subject, scope)
	if cred, ok := c.cache.get(key, c.now(), c.cfg.SafetyMargin); ok {
		c.cfg.Metrics.RecordCacheHit(ctx)
		return cred, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// A flight that just finished may have populated the cache
		// between our miss and joining this flight.
		if cred, ok := c.cache.get(key, c.now(), c.cfg.SafetyMargin); ok {
			return cred, nil
		}

		flightCtx := context.WithoutCancel(ctx)
		start := time.Now()
		var cred *Credential
		err := resilience.ExecuteWithTimeout(flightCtx, c.cfg.Timeout, func(ctx context.Context) error {
			var err error
			cred, err = c.redeem(ctx, raw, scope)
			return err
		})
		c.cfg.Metrics.RecordExchange(flightCtx, time.Since(start), err)
		if err != nil {
			c.cfg.Logger.Warn(flightCtx, "token exchange failed",
				observe.String("scope", scope),
				observe.Err(err))
			if errors.Is(err, resilience.ErrTimeout) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
		}

		c.cache.put(key, cred)
		c.cfg.Logger.Debug(flightCtx, "token exchange succeeded",
			observe.String("scope", scope))
		return cred, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Credential), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// redeem performs one on-behalf-of round trip against the token endpoint.
func (c *Client) redeem(ctx context.Context, raw, scope string) (*Credential, error) {
	ctx, span := c.cfg.Tracer.Start(ctx, "exchange.redeem",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("exchange.scope", scope)))
	defer span.End()

	form := url.Values{}
	form.Set("grant_type", GrantTypeJWTBearer)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("assertion", raw)
	form.Set("scope", scope)
	form.Set("requested_token_use", requestedTokenUse)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call token endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = "unexpected_response"
		}
		return nil, &ProviderError{
			Code:        body.Error,
			Description: body.Description,
			Status:      resp.StatusCode,
		}
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
		Scope       string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}

	now := c.now()
	grantedScope := body.Scope
	if grantedScope == "" {
		grantedScope = scope
	}
	return &Credential{
		Token:     body.AccessToken,
		Scope:     grantedScope,
		ExpiresAt: now.Add(time.Duration(body.ExpiresIn) * time.Second),
		IssuedAt:  now,
	}, nil
}
