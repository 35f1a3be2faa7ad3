package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/wasmprov/pkg/observability"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "test-svc", "0.1.0", observability.ModeBatch))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	logger.InfoContext(trace.ContextWithSpanContext(context.Background(), sc), "module classified")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "test-svc", record["service"])
	assert.Equal(t, "0.1.0", record["version"])
	assert.Equal(t, "batch", record["mode"])
}

func TestTracingHandler_NoTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "wasmprov", "", observability.ModeCLI))

	logger.InfoContext(context.Background(), "no span")

	record := decodeRecord(t, &buf)

	_, hasTraceID := record["trace_id"]
	assert.False(t, hasTraceID)

	_, hasVersion := record["version"]
	assert.False(t, hasVersion)

	assert.Equal(t, "cli", record["mode"])
}

func TestTracingHandler_WithGroupKeepsServiceTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "wasmprov", "", observability.ModeCLI))

	logger.WithGroup("module").With(slog.String("id", "a.wasm")).Info("parse failed")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "wasmprov", record["service"])

	group, ok := record["module"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a.wasm", group["id"])
}

func TestTracingHandler_AddsRunAndModule(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "wasmprov", "", observability.ModeBatch))

	ctx := observability.WithRunID(context.Background(), "run-1")
	ctx = observability.WithModuleID(ctx, "wasm/a.wasm")

	logger.WarnContext(ctx, "module skipped")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "run-1", record["run_id"])
	assert.Equal(t, "wasm/a.wasm", record["module"])
	assert.Equal(t, "run-1", observability.RunID(ctx))
	assert.Empty(t, observability.RunID(context.Background()))
}
