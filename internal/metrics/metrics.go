// Package metrics exports limiter decisions as Prometheus metrics through an OpenTelemetry meter.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/serroba/rate-limiter-go/internal/ratelimit"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/serroba/rate-limiter-go"

// Error kinds reported on ratelimit_errors_total.
const (
	KindInvalidInput      = "invalid_input"
	KindStoreUnavailable  = "store_unavailable"
	KindStoreInconsistent = "store_inconsistent"
	KindUnknown           = "unknown"
)

// Metrics holds the limiter instruments and the registry they are exported to.
type Metrics struct {
	provider  *sdkmetric.MeterProvider
	registry  *prometheus.Registry
	decisions metric.Int64Counter
	errors    metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates the meter provider and registers its exporter with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)

	decisions, err := meter.Int64Counter(
		"ratelimit_decisions_total",
		metric.WithDescription("Rate limit decisions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decisions counter: %w", err)
	}

	errs, err := meter.Int64Counter(
		"ratelimit_errors_total",
		metric.WithDescription("Rate limit checks that failed, by error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"ratelimit_check_duration_seconds",
		metric.WithDescription("Rate limit check duration in seconds"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &Metrics{
		provider:  provider,
		registry:  registry,
		decisions: decisions,
		errors:    errs,
		duration:  duration,
	}, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown() error {
	return m.provider.Shutdown(context.Background())
}

// Observe records the outcome of one check.
func (m *Metrics) Observe(ctx context.Context, decision ratelimit.Decision, err error, elapsed time.Duration) {
	m.duration.Record(ctx, elapsed.Seconds())

	if err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", ErrorKind(err))))

		return
	}

	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("admitted", decision.Admitted)))
}

// ErrorKind classifies err into one of the Kind* labels.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ratelimit.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ratelimit.ErrStoreInconsistent):
		return KindStoreInconsistent
	case errors.Is(err, ratelimit.ErrStoreUnavailable):
		return KindStoreUnavailable
	default:
		return KindUnknown
	}
}
