package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/toolgate/exchange"
	"github.com/jonwraymond/toolgate/gate"
	"github.com/jonwraymond/toolgate/graph"
	"github.com/jonwraymond/toolgate/health"
	"github.com/jonwraymond/toolgate/metadata"
	"github.com/jonwraymond/toolgate/observe"
	"github.com/jonwraymond/toolgate/policy"
)

// run wires the engine together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config) error {
	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: "toolgate",
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.TraceExporter != "none",
			Exporter:  cfg.TraceExporter,
			SamplePct: cfg.TraceSamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  cfg.MetricExporter != "none",
			Exporter: cfg.MetricExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.LogLevel,
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	logger := obs.Logger()

	metrics, err := observe.NewEngineMetrics(obs.Meter())
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	validator, err := policy.New(policy.Config{
		Variant:            cfg.ValidationVariant,
		Audience:           cfg.Audience,
		IssuerTemplate:     cfg.IssuerTemplate,
		TenantID:           cfg.TenantID,
		RequiredScopes:     cfg.RequiredScopes,
		JWKSURL:            cfg.JWKSURL,
		KeyRefreshInterval: cfg.KeyRefresh,
		KeyFetchTimeout:    cfg.HTTPTimeout,
	})
	if err != nil {
		return fmt.Errorf("create validator: %w", err)
	}

	gateOpts := []gate.Option{
		gate.WithLogger(logger.With(observe.String("component", "gate"))),
		gate.WithMetrics(metrics),
		gate.WithTracer(obs.Tracer()),
	}
	if cfg.ExchangeEnabled {
		xc, err := exchange.NewClient(exchange.Config{
			TokenEndpoint: cfg.TokenEndpoint,
			ClientID:      cfg.ClientID,
			ClientSecret:  cfg.ClientSecret,
			SafetyMargin:  cfg.CacheMargin,
			Timeout:       cfg.HTTPTimeout,
			Logger:        logger.With(observe.String("component", "exchange")),
			Metrics:       metrics,
			Tracer:        obs.Tracer(),
		})
		if err != nil {
			return fmt.Errorf("create exchange client: %w", err)
		}
		gateOpts = append(gateOpts, gate.WithExchanger(xc, cfg.TargetScope))
	}
	g := gate.New(validator, gateOpts...)

	graphClient := graph.NewClient()

	mcpServer := server.NewMCPServer("toolgate", version,
		server.WithToolCapabilities(false),
	)
	registerTools(mcpServer, g, graphClient)

	streamable := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithHTTPContextFunc(gate.HTTPContextFunc),
	)

	mdCfg := metadata.Config{
		Resource:             cfg.BaseURL,
		AuthorizationServers: []string{cfg.authorizationServer()},
		ScopesSupported:      cfg.RequiredScopes,
	}

	agg := health.NewAggregator(5 * time.Second)
	if cfg.ValidationVariant == policy.VariantSignature {
		agg.Register(health.Endpoint("signing_keys", cfg.JWKSURL, nil))
	}
	if cfg.ExchangeEnabled {
		agg.Register(health.Endpoint("token_endpoint", cfg.TokenEndpoint, nil))
	}

	mux := http.NewServeMux()
	mux.Handle(metadata.WellKnownPath, metadata.NewHandler(mdCfg))
	mux.HandleFunc("/healthz", health.LivenessHandler())
	mux.HandleFunc("/readyz", health.ReadinessHandler(agg))
	mux.Handle("/mcp", challengeUnauthenticated(mdCfg, streamable))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info(ctx, "server starting",
		observe.String("addr", cfg.ListenAddr),
		observe.String("validation", cfg.ValidationVariant),
		observe.String("exchange", fmt.Sprintf("%t", cfg.ExchangeEnabled)))

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// challengeUnauthenticated returns 401 with a resource-metadata
// challenge when the request carries no credential at all, so clients
// can self-discover how to obtain one. Requests with a credential pass
// through; their acceptance is decided per tool call by the gate.
func challengeUnauthenticated(md metadata.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.Header().Set("WWW-Authenticate", md.WWWAuthenticate())
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// registerTools exposes the demo tool surface, each handler behind the
// delegation gate.
func registerTools(s *server.MCPServer, g *gate.Gate, gc *graph.Client) {
	hello := mcp.NewTool("hello",
		mcp.WithDescription("Say hello using your Microsoft profile name"),
	)
	s.AddTool(hello, gate.Require(g, helloHandler(gc)))

	junk := mcp.NewTool("list_junk_emails",
		mcp.WithDescription("List your most recent junk emails"),
		mcp.WithNumber("top",
			mcp.Description("How many messages to list (default 5)"),
		),
	)
	s.AddTool(junk, gate.Require(g, junkHandler(gc)))
}
