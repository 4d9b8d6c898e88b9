package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/utafrali/catalog/pkg/logger"
)

func TestQueryTracer_RecordsSpan(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	qt := NewQueryTracer("postgresql", 0, nil)
	_, end := qt.Start(context.Background(), "GetByID", "SELECT 1")
	end(errors.New("no rows"))

	spans := exp.GetSpans()
	if assert.Len(t, spans, 1) {
		assert.Equal(t, "db.GetByID", spans[0].Name)
		assert.Len(t, spans[0].Events, 1, "error recorded as span event")
	}
}

func TestQueryTracer_SlowQueryWarning(t *testing.T) {
	var buf bytes.Buffer
	qt := NewQueryTracer("mongodb", time.Nanosecond, logger.NewWithWriter("test", "warn", &buf))

	_, end := qt.Start(context.Background(), "ListAfter", "find")
	time.Sleep(time.Millisecond)
	end(nil)

	assert.Contains(t, buf.String(), "slow query detected")
	assert.Contains(t, buf.String(), "mongodb")
}

func TestQueryTracer_NilIsNoop(t *testing.T) {
	var qt *QueryTracer
	ctx, end := qt.Start(context.Background(), "x", "y")
	assert.NotNil(t, ctx)
	end(nil)
}
