// Package observability holds the ports every layer logs, traces and counts
// through. Adapters live under infrastructure/observability; nop
// implementations back tests and optional wiring.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the three signals handed to use cases and transports.
type Observability interface {
	Tracer() Tracer
	Logger() Logger
	Metrics() Metrics
}

type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

// Logger writes structured lines. Message strings are snake_case event names
// such as "use_case_done"; everything variable goes in fields.
type Logger interface {
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

type Field struct {
	Key   string
	Value any
}

func F(k string, v any) Field { return Field{Key: k, Value: v} }

// Err is the field under which every failure is logged.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// MetricKey names a registered instrument.
type MetricKey string

const (
	MUsecaseRequests     MetricKey = "usecase_requests_total"   // {use_case,outcome}
	MUsecaseDuration     MetricKey = "usecase_duration_seconds" // {use_case}
	MHTTPRequests        MetricKey = "http_requests_total"      // {method,route,status}
	MHTTPRequestDuration MetricKey = "http_request_duration_seconds"

	// Calls leaving the process: escrow gateway and outbox publishes.
	MExternalRequests        MetricKey = "external_requests_total" // {peer,endpoint,outcome}
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"

	// Cancelled orders whose stock could not be handed back.
	MStockRestoreFailures MetricKey = "stock_restore_failures_total" // {reason}
)

type Metrics interface {
	Counter(name MetricKey) Counter
	Histogram(name MetricKey) Histogram
}

// Label values must stay low-cardinality: no order or principal ids.
type Label struct{ Key, Value string }

func L(k, v string) Label { return Label{Key: k, Value: v} }

type Counter interface {
	Add(delta float64, labels ...Label)
	Bind(labels ...Label) BoundCounter
}

type BoundCounter interface {
	Add(delta float64)
}

type Histogram interface {
	Observe(value float64, labels ...Label)
	Bind(labels ...Label) BoundHistogram
}

type BoundHistogram interface {
	Observe(value float64)
}
