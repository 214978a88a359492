package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/toolgate/policy"
	"github.com/jonwraymond/toolgate/secret"
)

// graphAppID is the audience Graph tokens are issued for. It is the
// default expected audience in claims-only mode, where the inbound
// credential is a Graph token the gate passes through.
const graphAppID = "00000003-0000-0000-c000-000000000000"

// config is the server's environment-driven configuration.
type config struct {
	TenantID     string `env:"AZURE_TENANT_ID,required,notEmpty"`
	ClientID     string `env:"AZURE_CLIENT_ID"`
	ClientSecret string `env:"AZURE_CLIENT_SECRET"` // plain value or secret reference (env:/file:)
	BaseURL      string `env:"BASE_URL" envDefault:"http://localhost:8000"`
	ListenAddr   string `env:"TOOLGATE_LISTEN_ADDR" envDefault:":8000"`

	ValidationVariant string        `env:"TOOLGATE_VALIDATION" envDefault:"claims-only"`
	Audience          string        `env:"TOOLGATE_AUDIENCE"`
	IssuerTemplate    string        `env:"TOOLGATE_ISSUER_TEMPLATE"`
	RequiredScopes    []string      `env:"TOOLGATE_REQUIRED_SCOPES" envSeparator:"," envDefault:"User.Read,Mail.Read"`
	JWKSURL           string        `env:"TOOLGATE_JWKS_URL"`
	KeyRefresh        time.Duration `env:"TOOLGATE_KEY_REFRESH" envDefault:"1h"`

	ExchangeEnabled bool          `env:"TOOLGATE_EXCHANGE_ENABLED" envDefault:"false"`
	TargetScope     string        `env:"TOOLGATE_TARGET_SCOPE" envDefault:"https://graph.microsoft.com/.default"`
	TokenEndpoint   string        `env:"TOOLGATE_TOKEN_ENDPOINT"`
	CacheMargin     time.Duration `env:"TOOLGATE_CACHE_MARGIN" envDefault:"5m"`
	HTTPTimeout     time.Duration `env:"TOOLGATE_HTTP_TIMEOUT" envDefault:"10s"`

	LogLevel       string  `env:"TOOLGATE_LOG_LEVEL" envDefault:"info"`
	TraceExporter  string  `env:"TOOLGATE_TRACE_EXPORTER" envDefault:"none"`
	MetricExporter string  `env:"TOOLGATE_METRIC_EXPORTER" envDefault:"none"`
	TraceSamplePct float64 `env:"TOOLGATE_TRACE_SAMPLE" envDefault:"1.0"`
}

// loadConfig parses the environment and fills in derived defaults.
func loadConfig() (*config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize resolves secret references and derives variant-dependent
// defaults from the tenant.
func (c *config) normalize() error {
	if c.ClientSecret != "" {
		resolved, err := secret.Resolve(c.ClientSecret)
		if err != nil {
			return fmt.Errorf("resolve client secret: %w", err)
		}
		c.ClientSecret = resolved
	}

	switch c.ValidationVariant {
	case policy.VariantClaimsOnly:
		if c.Audience == "" {
			c.Audience = graphAppID
		}
		if c.IssuerTemplate == "" {
			c.IssuerTemplate = "https://sts.windows.net/{tenant}/"
		}
	case policy.VariantSignature:
		if c.Audience == "" {
			c.Audience = c.ClientID
		}
		if c.IssuerTemplate == "" {
			c.IssuerTemplate = "https://login.microsoftonline.com/{tenant}/v2.0"
		}
		if c.JWKSURL == "" {
			c.JWKSURL = c.expand("https://login.microsoftonline.com/{tenant}/discovery/v2.0/keys")
		}
	default:
		return fmt.Errorf("unknown validation variant %q", c.ValidationVariant)
	}

	if c.Audience == "" {
		return errors.New("expected audience is required (set TOOLGATE_AUDIENCE or AZURE_CLIENT_ID)")
	}

	if c.ExchangeEnabled {
		if c.ClientID == "" || c.ClientSecret == "" {
			return errors.New("exchange requires AZURE_CLIENT_ID and AZURE_CLIENT_SECRET")
		}
		if c.TokenEndpoint == "" {
			c.TokenEndpoint = c.expand("https://login.microsoftonline.com/{tenant}/oauth2/v2.0/token")
		}
	}

	return nil
}

// expand substitutes the tenant into a {tenant}-parameterized URL.
func (c *config) expand(template string) string {
	return strings.ReplaceAll(template, "{tenant}", c.TenantID)
}

// authorizationServer is the discovery URL advertised in the resource
// metadata document.
func (c *config) authorizationServer() string {
	return c.expand("https://login.microsoftonline.com/{tenant}/v2.0")
}
