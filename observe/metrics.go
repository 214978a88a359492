package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics records authorization-engine metrics. A nil *EngineMetrics
// is valid and records nothing, so components can treat metrics as
// optional without nil checks at every call site.
type EngineMetrics struct {
	decisions    metric.Int64Counter
	exchanges    metric.Int64Counter
	cacheHits    metric.Int64Counter
	exchangeTime metric.Float64Histogram
}

// NewEngineMetrics creates the engine's instruments on the given meter.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	decisions, err := meter.Int64Counter(
		"gate.authorize.total",
		metric.WithDescription("Authorization decisions by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	exchanges, err := meter.Int64Counter(
		"exchange.calls.total",
		metric.WithDescription("Token exchange calls issued to the provider"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"exchange.cache.hits",
		metric.WithDescription("Exchange requests served from cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	exchangeTime, err := meter.Float64Histogram(
		"exchange.duration_ms",
		metric.WithDescription("Token exchange round-trip duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		decisions:    decisions,
		exchanges:    exchanges,
		cacheHits:    cacheHits,
		exchangeTime: exchangeTime,
	}, nil
}

// RecordDecision counts one authorization decision. reason is empty for
// an accepted request.
func (m *EngineMetrics) RecordDecision(ctx context.Context, accepted bool, reason string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.Bool("accepted", accepted)}
	if reason != "" {
		attrs = append(attrs, attribute.String("reason", reason))
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordExchange counts one provider exchange round trip.
func (m *EngineMetrics) RecordExchange(ctx context.Context, duration time.Duration, err error) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attribute.Bool("error", err != nil))
	m.exchanges.Add(ctx, 1, opt)
	m.exchangeTime.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordCacheHit counts one exchange request served from cache.
func (m *EngineMetrics) RecordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1)
}
