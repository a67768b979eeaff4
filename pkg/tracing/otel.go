// Copyright 2026 fanjia1024
// OpenTelemetry integration for distributed tracing

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer。CLI 在 CI runner 上开启追踪时走这里；
// trackerd 的 HTTP 层由 hertz obs 扩展接管，不经此函数。
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartLifecycleSpan 开始一次会话生命周期操作 span（sod/heartbeat/update/eod）
func StartLifecycleSpan(ctx context.Context, op string, agent string) (context.Context, trace.Span) {
	tracer := otel.Tracer("agent-coord")
	ctx, span := tracer.Start(ctx, "lifecycle."+op,
		trace.WithAttributes(
			attribute.String("coord.agent", agent),
		),
	)
	return ctx, span
}

// StartCollectSpan 开始一次活动采集 span
func StartCollectSpan(ctx context.Context, source string) (context.Context, trace.Span) {
	tracer := otel.Tracer("agent-coord")
	ctx, span := tracer.Start(ctx, "activity.collect",
		trace.WithAttributes(
			attribute.String("activity.source", source),
		),
	)
	return ctx, span
}

// StartSweepSpan 开始一次放弃清扫 span（trackerd 后台 GC）
func StartSweepSpan(ctx context.Context) (context.Context, trace.Span) {
	tracer := otel.Tracer("agent-coord")
	return tracer.Start(ctx, "sessions.sweep")
}
