// Package observability wires OpenTelemetry spans and metrics around a
// subscription's execution, adapted from the teacher's
// driver/observability.go. Where the teacher tags spans with Cypher query
// classification (READ/WRITE/SCHEMA_WRITE) against a Neo4j attribute set,
// this module reports generic SQL db.* attributes and counts rows flowing
// through src/reactivesql's forwarder rather than Neo4j result summaries.
package observability

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/seuros/reactive-sql-bridge/src/observability"
	instrumentationVersion = "0.1.0"
)

// Config controls which signals Instruments records.
type Config struct {
	EnableTracing     bool
	EnableMetrics     bool
	TracingAttributes []attribute.KeyValue
	MetricAttributes  []attribute.KeyValue
}

// DefaultConfig enables both signals with a small db.system attribute set.
func DefaultConfig() *Config {
	return &Config{
		EnableTracing: true,
		EnableMetrics: true,
		TracingAttributes: []attribute.KeyValue{
			attribute.String("db.system", "sql"),
			attribute.String("db.driver", "reactive-sql-bridge"),
		},
		MetricAttributes: []attribute.KeyValue{
			attribute.String("db.system", "sql"),
			attribute.String("db.driver", "reactive-sql-bridge"),
		},
	}
}

// Instruments holds the OpenTelemetry tracer, meter and the metric
// instruments this module records.
type Instruments struct {
	tracer trace.Tracer
	meter  metric.Meter

	queryDuration   metric.Float64Histogram
	queryCount      metric.Int64Counter
	queryErrors     metric.Int64Counter
	connectionCount metric.Int64UpDownCounter
	connectionError metric.Int64Counter
	recordsReturned metric.Int64Counter
}

// New initializes OpenTelemetry instruments against the globally
// registered providers (otel.Tracer/otel.Meter), matching how the teacher
// resolves its instrumentation.
func New() *Instruments {
	tracer := otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion))
	meter := otel.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	in := &Instruments{tracer: tracer, meter: meter}

	var err error
	if in.queryDuration, err = meter.Float64Histogram("db.query.duration",
		metric.WithDescription("duration of queries run through reactivesql"), metric.WithUnit("s")); err != nil {
		otel.Handle(err)
	}
	if in.queryCount, err = meter.Int64Counter("db.query.count",
		metric.WithDescription("number of queries executed")); err != nil {
		otel.Handle(err)
	}
	if in.queryErrors, err = meter.Int64Counter("db.query.errors",
		metric.WithDescription("number of query executions that failed")); err != nil {
		otel.Handle(err)
	}
	if in.connectionCount, err = meter.Int64UpDownCounter("db.connection.count",
		metric.WithDescription("number of connections currently checked out")); err != nil {
		otel.Handle(err)
	}
	if in.connectionError, err = meter.Int64Counter("db.connection.errors",
		metric.WithDescription("number of connection-factory failures")); err != nil {
		otel.Handle(err)
	}
	if in.recordsReturned, err = meter.Int64Counter("db.query.records",
		metric.WithDescription("number of rows delivered downstream")); err != nil {
		otel.Handle(err)
	}
	return in
}

// Span tracks one subscription's lifetime, from the first positive demand
// to its terminal signal.
type Span struct {
	span      trace.Span
	startTime time.Time
	records   int64
}

// StartQuery opens a span (when tracing is enabled) for one rendered
// query, tagging it with the inferred statement type.
func (in *Instruments) StartQuery(ctx context.Context, query string, cfg *Config) (context.Context, *Span) {
	if cfg == nil || !cfg.EnableTracing {
		return ctx, &Span{startTime: time.Now()}
	}

	attrs := make([]attribute.KeyValue, 0, len(cfg.TracingAttributes)+2)
	attrs = append(attrs, cfg.TracingAttributes...)
	attrs = append(attrs,
		attribute.String("db.statement", query),
		attribute.String("db.operation", inferStatementType(query)),
	)

	ctx, span := in.tracer.Start(ctx, "reactivesql.query",
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	return ctx, &Span{span: span, startTime: time.Now()}
}

// RecordRow increments the span's row counter; called once per delivered
// item from a forwarder.
func (s *Span) RecordRow() {
	if s == nil {
		return
	}
	s.records++
}

// Finish records metrics and ends the span, tagging the outcome with err
// (nil means success, non-nil means the terminal OnError path).
func (in *Instruments) Finish(s *Span, cfg *Config, err error) {
	if s == nil {
		return
	}
	duration := time.Since(s.startTime)

	if cfg != nil && cfg.EnableMetrics {
		attrs := metric.WithAttributes(cfg.MetricAttributes...)
		in.queryDuration.Record(context.Background(), duration.Seconds(), attrs)
		if err != nil {
			in.queryErrors.Add(context.Background(), 1, attrs)
		} else {
			in.queryCount.Add(context.Background(), 1, attrs)
			if s.records > 0 {
				in.recordsReturned.Add(context.Background(), s.records, attrs)
			}
		}
	}

	if cfg != nil && cfg.EnableTracing && s.span != nil {
		s.span.SetAttributes(
			attribute.Int64("db.query.records_returned", s.records),
			attribute.Float64("db.query.duration_ms", float64(duration.Nanoseconds())/1e6),
		)
		if err != nil {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		} else {
			s.span.SetStatus(codes.Ok, "")
		}
		s.span.End()
	}
}

// RecordConnect records a connect-stage outcome.
func (in *Instruments) RecordConnect(cfg *Config, err error) {
	if cfg == nil || !cfg.EnableMetrics {
		return
	}
	attrs := metric.WithAttributes(cfg.MetricAttributes...)
	if err != nil {
		in.connectionError.Add(context.Background(), 1, attrs)
		return
	}
	in.connectionCount.Add(context.Background(), 1, attrs)
}

// RecordDisconnect records a connection being closed.
func (in *Instruments) RecordDisconnect(cfg *Config) {
	if cfg == nil || !cfg.EnableMetrics {
		return
	}
	in.connectionCount.Add(context.Background(), -1, metric.WithAttributes(cfg.MetricAttributes...))
}

// inferStatementType classifies a rendered SQL string for the
// db.operation span attribute; purely heuristic, matching the teacher's
// uppercase-substring approach.
func inferStatementType(query string) string {
	upper := strings.ToUpper(query)
	switch {
	case strings.Contains(upper, "CREATE TABLE"), strings.Contains(upper, "ALTER TABLE"), strings.Contains(upper, "DROP TABLE"):
		return "SCHEMA"
	case strings.Contains(upper, "INSERT"), strings.Contains(upper, "UPDATE"), strings.Contains(upper, "DELETE"):
		return "WRITE"
	case strings.Contains(upper, "SELECT"):
		return "READ"
	default:
		return "UNKNOWN"
	}
}
