package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func installTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func attrValue(attrs []attribute.KeyValue, key string) string {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.AsString()
		}
	}
	return ""
}

func TestTraceQuery_RecordsSpan(t *testing.T) {
	exporter := installTracer(t)

	parentCtx, parent := otel.Tracer("test").Start(context.Background(), "scoring.rank")
	ctx, end := TraceQuery(parentCtx, "ListAllByProductID", "SELECT id FROM product_reviews WHERE product_id = $1")
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	end(nil)
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	db := spans[0]
	assert.Equal(t, "db.ListAllByProductID", db.Name)
	assert.Equal(t, trace.SpanKindClient, db.SpanKind)
	assert.Equal(t, "postgresql", attrValue(db.Attributes, "db.system"))
	assert.Equal(t, parent.SpanContext().SpanID(), db.Parent.SpanID())
	assert.Equal(t, codes.Unset, db.Status.Code)
}

func TestTraceQuery_RecordsError(t *testing.T) {
	exporter := installTracer(t)

	_, end := TraceQuery(context.Background(), "RecordVote", "UPDATE product_reviews SET helpful = $1")
	end(errors.New("version conflict"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "version conflict", spans[0].Status.Description)
	assert.Len(t, spans[0].Events, 1)
}

func TestSlowQueryLogging(t *testing.T) {
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	SetSlowQueryLogging(time.Nanosecond, logger)
	_, end := TraceQuery(context.Background(), "ListReviews", "SELECT 1")
	time.Sleep(time.Millisecond)
	end(errors.New("timeout"))
	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "operation=ListReviews")
	assert.Contains(t, buf.String(), "error=timeout")

	buf.Reset()
	SetSlowQueryLogging(time.Hour, logger)
	_, end = TraceQuery(context.Background(), "ListReviews", "SELECT 1")
	end(nil)
	assert.Empty(t, buf.String())

	SetSlowQueryLogging(0, logger)
	_, end = TraceQuery(context.Background(), "ListReviews", "SELECT 1")
	end(nil)
	assert.Empty(t, buf.String())
}

func TestSetSlowQueryLogging_Concurrent(t *testing.T) {
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetSlowQueryLogging(time.Hour, logger)
		}()
		go func() {
			defer wg.Done()
			_, end := TraceQuery(context.Background(), "GetByID", "SELECT 1")
			end(nil)
		}()
	}
	wg.Wait()
}
