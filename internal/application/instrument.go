package application

import (
	"context"
	"errors"
	"time"

	domoutbox "github.com/Zhima-Mochi/escrowshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"
	"github.com/Zhima-Mochi/escrowshop/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	spanPrefix     = "UC."
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
)

// Instrument holds the RED instruments shared by the use cases of one service.
// Instruments are resolved once here; use cases never create metrics.
type Instrument struct {
	log    observability.Logger
	tracer observability.Tracer

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstrument(service string, tel observability.Observability) *Instrument {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Instrument{
		log:          tel.Logger().With(observability.F("service", service)),
		tracer:       tel.Tracer(),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

func (i *Instrument) Logger() observability.Logger { return i.log }

// Run tracks one use case execution from Begin to End.
type Run struct {
	inst    *Instrument
	ctx     context.Context
	span    trace.Span
	log     observability.Logger
	useCase string
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

// Begin opens the use case span and binds the request-scoped logger.
func (i *Instrument) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := i.tracer.Start(ctx, spanPrefix+spanName, attrs...)
	ctx, log := logctx.Enrich(ctx, i.log, observability.F("use_case", useCase))
	return ctx, &Run{
		inst:    i,
		ctx:     ctx,
		span:    span,
		log:     log,
		useCase: useCase,
		start:   time.Now(),
		outcome: OutcomeSuccess,
		status:  "OK",
	}
}

func (r *Run) Logger() observability.Logger { return r.log }
func (r *Run) Span() trace.Span             { return r.span }

// Fail marks the run as failed with a machine readable status code.
func (r *Run) Fail(status string) {
	r.outcome, r.status = OutcomeError, status
}

// Note keeps the run successful but replaces its status code.
func (r *Run) Note(status string) {
	r.status = status
}

// Annotate adds fields to the final use_case_done line.
func (r *Run) Annotate(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

// Event records a span event with string attributes given as key/value pairs.
func (r *Run) Event(name string, kv ...string) {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for j := 0; j+1 < len(kv); j += 2 {
		attrs = append(attrs, attribute.String(kv[j], kv[j+1]))
	}
	r.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End closes the span, records RED metrics and writes the use_case_done line.
func (r *Run) End(err error) {
	if err != nil && r.outcome == OutcomeSuccess {
		r.Fail("ERROR")
	}
	lat := time.Since(r.start).Seconds()

	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, r.status)
	} else {
		r.span.SetStatus(codes.Ok, r.status)
	}
	r.span.End()

	r.inst.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.outcome),
	)
	r.inst.durHistogram.Observe(lat, observability.L("use_case", r.useCase))

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(r.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, r.fields...)
	if err != nil {
		fields = append(fields, observability.Err(err))
	}
	r.log.Info("use_case_done", fields...)
}

// External runs fn against a remote peer under timeout and records the call.
// fn must not be retried by the caller on failure.
func (i *Instrument) External(ctx context.Context, peer, endpoint string, timeout time.Duration, fn func(context.Context) error) error {
	callCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	start := time.Now()
	err := fn(callCtx)
	outcome := OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		outcome = "timeout"
	case errors.Is(err, context.Canceled):
		outcome = "canceled"
	default:
		outcome = OutcomeError
	}
	cancel()

	i.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	i.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
	return err
}

// Publish hands event to the outbox with a short timeout. Publishing is best
// effort: the returned error is for logging only.
func (i *Instrument) Publish(ctx context.Context, publisher domoutbox.Publisher, event domoutbox.Event) error {
	if publisher == nil || event == nil {
		return nil
	}
	return i.External(context.WithoutCancel(ctx), publishPeer, event.EventName(), publishTimeout, func(ctx context.Context) error {
		return publisher.Publish(ctx, event)
	})
}
