package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "stdout", "test")

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "inside span", "k", "v")
	span.End()

	out := buf.String()
	assert.Contains(t, out, `"trace_id":"`+span.SpanContext().TraceID().String()+`"`)
	assert.Contains(t, out, `"span_id":"`+span.SpanContext().SpanID().String()+`"`)
	assert.Contains(t, out, `"k":"v"`)

	buf.Reset()
	logger.With("component", "x").InfoContext(context.Background(), "no span")
	assert.NotContains(t, buf.String(), "trace_id")
	assert.Contains(t, buf.String(), `"component":"x"`)
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn, "otel", "test")

	logger.Info("dropped")
	assert.Empty(t, buf.String())
	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestSetup_Counters(t *testing.T) {
	ctx := context.Background()
	p, err := Setup(ctx, "infobooks-test", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	counter, err := p.MeterProvider.Meter("test").Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(ctx, 2)
	counter.Add(ctx, 3)

	counters, err := p.Counters(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, counters["test.counter"])
}

// memoryExporter keeps every exported log record.
type memoryExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func (e *memoryExporter) bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, r := range e.records {
		out = append(out, r.Body().AsString())
	}
	return out
}

func TestNewLogger_OtelExporter(t *testing.T) {
	ctx := context.Background()
	exporter := &memoryExporter{}
	p, err := Setup(ctx, "infobooks-test", "", WithLogExporter(exporter))
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "otel", "test")
	logger.Info("exported", "k", "v")
	logger.Debug("below level")
	NewLogger(&buf, slog.LevelInfo, "stdout", "test").Info("stdout only")

	require.NoError(t, p.Shutdown(ctx))
	assert.Equal(t, []string{"exported"}, exporter.bodies())
	assert.Contains(t, buf.String(), "exported")
	assert.Contains(t, buf.String(), "stdout only")
}
