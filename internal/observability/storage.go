package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/models"
	"marketplace/internal/storage"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	return newInstrumentedStorage(inner, otel.Meter("marketplace/storage"))
}

func newInstrumentedStorage(inner storage.Storage, meter metric.Meter) (*InstrumentedStorage, error) {
	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   otel.Tracer("marketplace/storage"),
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) Listings(ctx context.Context, filter models.ListingFilter) ([]*models.Listing, int, error) {
	ctx, span := s.startSpan(ctx, "Listings",
		attribute.String("seller_id", filter.SellerID),
		attribute.String("category", filter.Category),
		attribute.Int("limit", filter.Limit),
		attribute.Int("offset", filter.Offset),
	)
	start := time.Now()
	result, total, err := s.inner.Listings(ctx, filter)
	s.record(ctx, span, "Listings", start, err)
	return result, total, err
}

func (s *InstrumentedStorage) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	ctx, span := s.startSpan(ctx, "GetListing", attribute.String("listing_id", id))
	start := time.Now()
	result, err := s.inner.GetListing(ctx, id)
	s.record(ctx, span, "GetListing", start, err)
	return result, err
}

func (s *InstrumentedStorage) SaveListing(ctx context.Context, listing *models.Listing) error {
	ctx, span := s.startSpan(ctx, "SaveListing", attribute.String("listing_id", listing.ID))
	start := time.Now()
	err := s.inner.SaveListing(ctx, listing)
	s.record(ctx, span, "SaveListing", start, err)
	return err
}

func (s *InstrumentedStorage) DeleteListing(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "DeleteListing", attribute.String("listing_id", id))
	start := time.Now()
	err := s.inner.DeleteListing(ctx, id)
	s.record(ctx, span, "DeleteListing", start, err)
	return err
}

func (s *InstrumentedStorage) SearchListings(ctx context.Context, query string, limit int) ([]*models.Listing, error) {
	ctx, span := s.startSpan(ctx, "SearchListings", attribute.Int("limit", limit))
	start := time.Now()
	result, err := s.inner.SearchListings(ctx, query, limit)
	s.record(ctx, span, "SearchListings", start, err)
	return result, err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
