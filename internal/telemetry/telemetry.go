// Package telemetry exports tracking metrics over OTLP/gRPC, or discards them
// when no collector is configured.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sadopc/worklog/internal/tracker"
)

const (
	serviceName    = "worklog"
	serviceVersion = "1.0.0"
)

type Config struct {
	Endpoint string
	Insecure bool
}

// Recorder turns tracker updates into metrics.
type Recorder struct {
	shutdown func(context.Context) error

	trackedMinutes metric.Int64Counter
	entriesClosed  metric.Int64Counter
	ticks          metric.Int64Counter
}

// New connects to the collector at cfg.Endpoint. An empty endpoint yields a
// no-op recorder.
func New(ctx context.Context, cfg Config) (*Recorder, error) {
	if cfg.Endpoint == "" {
		return NewNoop(), nil
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	r, err := NewWithMeter(provider.Meter(serviceName))
	if err != nil {
		provider.Shutdown(ctx)
		return nil, err
	}
	r.shutdown = provider.Shutdown
	return r, nil
}

// NewNoop returns a recorder that drops everything.
func NewNoop() *Recorder {
	r, _ := NewWithMeter(noop.NewMeterProvider().Meter(serviceName))
	return r
}

// NewWithMeter builds the instruments on an existing meter.
func NewWithMeter(meter metric.Meter) (*Recorder, error) {
	trackedMinutes, err := meter.Int64Counter(
		"worklog_tracked_minutes_total",
		metric.WithDescription("Minutes committed by closed time entries"),
		metric.WithUnit("min"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating minutes counter: %w", err)
	}
	entriesClosed, err := meter.Int64Counter(
		"worklog_entries_closed_total",
		metric.WithDescription("Time entries closed"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating entries counter: %w", err)
	}
	ticks, err := meter.Int64Counter(
		"worklog_tracking_ticks_total",
		metric.WithDescription("Periodic updates from active sessions"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	return &Recorder{
		trackedMinutes: trackedMinutes,
		entriesClosed:  entriesClosed,
		ticks:          ticks,
	}, nil
}

// Observer returns a tracker observer that records updates for user.
func (r *Recorder) Observer(user string) tracker.UpdateFunc {
	opt := metric.WithAttributes(attribute.String("user", user))
	return func(u tracker.Update) {
		ctx := context.Background()
		if !u.Closed {
			r.ticks.Add(ctx, 1, opt)
			return
		}
		r.entriesClosed.Add(ctx, 1, opt)
		r.trackedMinutes.Add(ctx, u.Minutes, opt)
	}
}

// Close flushes pending metrics.
func (r *Recorder) Close(ctx context.Context) error {
	if r.shutdown == nil {
		return nil
	}
	return r.shutdown(ctx)
}
