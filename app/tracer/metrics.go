package tracer

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	chatTurnsTotal      metric.Int64Counter
	turnDurationSeconds metric.Float64Histogram
	toolExecutionsTotal metric.Int64Counter
	streamFramesTotal   metric.Int64Counter
)

// InitializeMetrics sets up the application's metric instruments. Call
// once during startup after the meter provider is configured.
func InitializeMetrics(meter metric.Meter) {
	var err error

	chatTurnsTotal, err = meter.Int64Counter(
		"chat_turns_total",
		metric.WithDescription("Total number of chat turns, by mode and outcome"),
	)
	if err != nil {
		log.Fatalf("Failed to create chat_turns_total counter: %v", err)
	}

	turnDurationSeconds, err = meter.Float64Histogram(
		"chat_turn_duration_seconds",
		metric.WithDescription("Wall-clock duration of a chat turn"),
		metric.WithUnit("s"),
	)
	if err != nil {
		log.Fatalf("Failed to create chat_turn_duration_seconds histogram: %v", err)
	}

	toolExecutionsTotal, err = meter.Int64Counter(
		"tool_executions_total",
		metric.WithDescription("Total number of tool executions, by tool and outcome"),
	)
	if err != nil {
		log.Fatalf("Failed to create tool_executions_total counter: %v", err)
	}

	streamFramesTotal, err = meter.Int64Counter(
		"stream_frames_total",
		metric.WithDescription("Total number of SSE frames written, by event type"),
	)
	if err != nil {
		log.Fatalf("Failed to create stream_frames_total counter: %v", err)
	}
}

func RecordChatTurn(ctx context.Context, mode, outcome string, seconds float64) {
	if chatTurnsTotal == nil {
		return // metrics not initialized (tests)
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	)
	chatTurnsTotal.Add(ctx, 1, attrs)
	turnDurationSeconds.Record(ctx, seconds, attrs)
}

func RecordToolExecution(ctx context.Context, tool string, failed bool) {
	if toolExecutionsTotal == nil {
		return
	}
	toolExecutionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("failed", failed),
	))
}

func RecordStreamFrame(ctx context.Context, eventType string) {
	if streamFramesTotal == nil {
		return
	}
	streamFramesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}
