package database

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/catalog/pkg/database"

// QueryTracer opens client spans around store operations and warns about
// operations slower than SlowThreshold.
type QueryTracer struct {
	System        string
	SlowThreshold time.Duration
	Logger        *slog.Logger
}

// NewQueryTracer returns a tracer for the given db.system value
// ("postgresql", "mongodb").
func NewQueryTracer(system string, slow time.Duration, logger *slog.Logger) *QueryTracer {
	return &QueryTracer{System: system, SlowThreshold: slow, Logger: logger}
}

// Start begins a span. The returned func must be called with the operation's
// error when it completes:
//
//	ctx, end := r.tracer.Start(ctx, "ListAfter", listAfterSQL)
//	defer func() { end(err) }()
func (q *QueryTracer) Start(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	if q == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", q.System),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if q.SlowThreshold <= 0 || q.Logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= q.SlowThreshold {
			q.Logger.WarnContext(ctx, "slow query detected",
				slog.String("db_system", q.System),
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
			)
		}
	}
}
