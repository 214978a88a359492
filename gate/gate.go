package gate

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/toolgate/exchange"
	"github.com/jonwraymond/toolgate/observe"
	"github.com/jonwraymond/toolgate/policy"
	"github.com/jonwraymond/toolgate/resilience"
	"github.com/jonwraymond/toolgate/token"
)

// Grant is a successful authorization: the downstream credential the
// tool body may use, plus the validated claims it was derived from.
type Grant struct {
	// Credential is the bearer credential for the downstream API. With
	// exchange enabled it is the exchanged credential; otherwise it is
	// the validated inbound credential passed through unchanged.
	Credential string

	// ExpiresAt is when the downstream credential expires.
	ExpiresAt time.Time

	// Claims is the validated inbound claim set.
	Claims *token.ClaimSet

	// Exchanged reports whether a delegated exchange produced the
	// credential.
	Exchanged bool
}

// Exchanger redeems a validated credential for a downstream one.
// *exchange.Client implements it; tests substitute fakes.
type Exchanger interface {
	Exchange(ctx context.Context, cs *token.ClaimSet, raw, scope string) (*exchange.Credential, error)
}

// Gate orchestrates parse, validation, and exchange for each request.
type Gate struct {
	validator   policy.Validator
	exchanger   Exchanger
	targetScope string
	logger      observe.Logger
	metrics     *observe.EngineMetrics
	tracer      trace.Tracer
}

// Option configures a Gate.
type Option func(*Gate)

// WithExchanger enables delegated exchange toward targetScope. Without
// this option the gate passes the validated credential through.
func WithExchanger(x Exchanger, targetScope string) Option {
	return func(g *Gate) {
		g.exchanger = x
		g.targetScope = targetScope
	}
}

// WithLogger attaches a logger.
func WithLogger(l observe.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithMetrics attaches engine metrics.
func WithMetrics(m *observe.EngineMetrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithTracer attaches a tracer.
func WithTracer(t trace.Tracer) Option {
	return func(g *Gate) { g.tracer = t }
}

// New creates a Gate around the given validator.
func New(v policy.Validator, opts ...Option) *Gate {
	g := &Gate{
		validator: v,
		logger:    observe.NopLogger(),
		tracer:    tracenoop.NewTracerProvider().Tracer("noop"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize decides whether the request carrying raw may proceed.
// It returns a Grant on acceptance or a *Denial on any failure. A
// denial is terminal for the request; nothing inside Authorize retries.
func (g *Gate) Authorize(ctx context.Context, raw string) (*Grant, error) {
	ctx, span := g.tracer.Start(ctx, "gate.authorize")
	defer span.End()

	grant, err := g.authorize(ctx, raw)
	if err != nil {
		reason, _ := DenialReason(err)
		span.SetAttributes(attribute.String("gate.denied", string(reason)))
		g.metrics.RecordDecision(ctx, false, string(reason))
		g.logger.Info(ctx, "request denied",
			observe.String("reason", string(reason)),
			observe.Err(errors.Unwrap(err)))
		return nil, err
	}

	g.metrics.RecordDecision(ctx, true, "")
	return grant, nil
}

func (g *Gate) authorize(ctx context.Context, raw string) (*Grant, error) {
	cs, err := token.Parse(raw)
	if err != nil {
		return nil, Deny(policy.ReasonMalformed, err)
	}

	outcome := g.validator.Evaluate(ctx, cs, raw)
	if !outcome.Accepted {
		return nil, Deny(outcome.Reason, outcome.Cause)
	}

	if g.exchanger == nil {
		return &Grant{
			Credential: raw,
			ExpiresAt:  cs.ExpiresAt,
			Claims:     outcome.Claims,
		}, nil
	}

	cred, err := g.exchanger.Exchange(ctx, outcome.Claims, raw, g.targetScope)
	if err != nil {
		if errors.Is(err, resilience.ErrTimeout) {
			return nil, Deny(policy.ReasonTimeout, err)
		}
		return nil, Deny(policy.ReasonExchangeFailed, err)
	}

	return &Grant{
		Credential: cred.Token,
		ExpiresAt:  cred.ExpiresAt,
		Claims:     outcome.Claims,
		Exchanged:  true,
	}, nil
}
