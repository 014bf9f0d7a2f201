package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"marketplace/internal/ratelimit"
)

// Decision outcomes recorded by RateLimitMetrics.
const (
	outcomeAllowed   = "allowed"
	outcomeThrottled = "throttled"
	outcomeFailOpen  = "fail_open"
)

// RateLimitMetrics records rate limiter decisions and approaching-limit
// events. It implements ratelimit.Observer and ratelimit.Notifier; wrap an
// existing notifier with Notifier to keep its behavior.
type RateLimitMetrics struct {
	decisions   metric.Int64Counter
	approaching metric.Int64Counter
	next        ratelimit.Notifier
}

// NewRateLimitMetrics creates decision instruments on the global meter
// provider. next, if non-nil, also receives every approaching-limit event.
func NewRateLimitMetrics(next ratelimit.Notifier) (*RateLimitMetrics, error) {
	return newRateLimitMetrics(otel.Meter("marketplace/ratelimit"), next)
}

func newRateLimitMetrics(meter metric.Meter, next ratelimit.Notifier) (*RateLimitMetrics, error) {
	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Rate limit decisions by quota tier and outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	approaching, err := meter.Int64Counter(
		"ratelimit.approaching",
		metric.WithDescription("Counters that reached 80% of their limit"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &RateLimitMetrics{decisions: decisions, approaching: approaching, next: next}, nil
}

// ObserveDecision counts one decision. Paths are not recorded to keep
// cardinality bounded; endpoint overrides are identified by rule name.
func (m *RateLimitMetrics) ObserveDecision(ctx context.Context, res ratelimit.Result) {
	outcome := outcomeAllowed
	switch {
	case res.Err != nil:
		outcome = outcomeFailOpen
	case !res.Decision.Allowed:
		outcome = outcomeThrottled
	}

	attrs := []attribute.KeyValue{
		attribute.String("source", string(res.Resolution.Source)),
		attribute.String("outcome", outcome),
	}
	if res.Resolution.Rule != "" {
		attrs = append(attrs, attribute.String("rule", res.Resolution.Rule))
	}
	if outcome == outcomeThrottled {
		attrs = append(attrs, attribute.String("period", string(res.Decision.Triggered)))
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// ApproachingLimit counts the event and forwards it to the wrapped notifier.
func (m *RateLimitMetrics) ApproachingLimit(ctx context.Context, ev ratelimit.Approaching) {
	m.approaching.Add(ctx, 1, metric.WithAttributes(attribute.String("period", string(ev.Period))))
	if m.next != nil {
		m.next.ApproachingLimit(ctx, ev)
	}
}

// InstrumentedCounterStore wraps a ratelimit.CounterStore with latency and
// error instruments.
type InstrumentedCounterStore struct {
	inner    ratelimit.CounterStore
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedCounterStore wraps inner using the global meter provider.
func NewInstrumentedCounterStore(inner ratelimit.CounterStore) (*InstrumentedCounterStore, error) {
	return newInstrumentedCounterStore(inner, otel.Meter("marketplace/ratelimit"))
}

func newInstrumentedCounterStore(inner ratelimit.CounterStore, meter metric.Meter) (*InstrumentedCounterStore, error) {
	duration, err := meter.Float64Histogram(
		"ratelimit.store.duration",
		metric.WithDescription("Duration of counter store increments in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"ratelimit.store.errors",
		metric.WithDescription("Number of failed counter store increments"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedCounterStore{inner: inner, duration: duration, errors: errCounter}, nil
}

func (s *InstrumentedCounterStore) Increment(ctx context.Context, key ratelimit.CounterKey, window time.Duration) (int64, error) {
	start := time.Now()
	n, err := s.inner.Increment(ctx, key, window)

	attrs := metric.WithAttributes(attribute.String("period", string(key.Period)))
	s.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		s.errors.Add(ctx, 1, attrs)
	}
	return n, err
}

func (s *InstrumentedCounterStore) Close() error {
	return s.inner.Close()
}
