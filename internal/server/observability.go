package server

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type Observability struct {
	Tracer oteltrace.Tracer
	Meter  metric.Meter

	traceProvider    *sdktrace.TracerProvider
	PlanCounter      metric.Int64Counter
	GatewayLatency   metric.Int64Histogram
	SafetyDecisions  metric.Int64Counter
	BackpressureHits metric.Int64Counter
}

func SetupObservability(ctx context.Context, cfg ObservabilityConfig) (*Observability, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "seal-api"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	if cfg.OTLPEndpoint != "" {
		exporter, exportErr := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if exportErr != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", exportErr)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		)
	} else {
		slog.Info("otel trace exporter not configured; using local tracer provider")
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	meter := otel.Meter(serviceName)
	tracer := otel.Tracer(serviceName)
	planCounter, _ := meter.Int64Counter("seal_plan_total")
	gatewayLatency, _ := meter.Int64Histogram("seal_gateway_latency_ms")
	safetyDecisions, _ := meter.Int64Counter("seal_safety_decision_total")
	backpressureHits, _ := meter.Int64Counter("seal_backpressure_total")
	return &Observability{
		Tracer:           tracer,
		Meter:            meter,
		traceProvider:    tp,
		PlanCounter:      planCounter,
		GatewayLatency:   gatewayLatency,
		SafetyDecisions:  safetyDecisions,
		BackpressureHits: backpressureHits,
	}, nil
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.traceProvider == nil {
		return nil
	}
	return o.traceProvider.Shutdown(ctx)
}

// The four methods below implement intervention.Observer.

func (o *Observability) MarkPlan(ctx context.Context, outcome string) {
	if o == nil {
		return
	}
	o.PlanCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) MarkSafety(ctx context.Context, decision string) {
	if o == nil {
		return
	}
	o.SafetyDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", decision),
	))
}

func (o *Observability) MarkBackpressure(ctx context.Context) {
	if o == nil {
		return
	}
	o.BackpressureHits.Add(ctx, 1)
}

func (o *Observability) RecordGatewayLatency(ctx context.Context, ms int64, status string) {
	if o == nil {
		return
	}
	o.GatewayLatency.Record(ctx, ms, metric.WithAttributes(
		attribute.String("status", status),
	))
}
