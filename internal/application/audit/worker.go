package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/escrowshop/internal/application"
	domaudit "github.com/Zhima-Mochi/escrowshop/internal/domain/audit"
	dominv "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/escrowshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"
	"github.com/Zhima-Mochi/escrowshop/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	workerService = "audit_worker"
	spanPrefix    = "UC."
)

type IDGenerator interface {
	NewID() string
}

// Worker turns lifecycle events from the outbox into audit entries.
type Worker struct {
	subscriber domoutbox.Subscriber
	repo       domaudit.Repository
	ids        IDGenerator
	tracer     observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewWorker(subscriber domoutbox.Subscriber, repo domaudit.Repository, ids IDGenerator, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber:   subscriber,
		repo:         repo,
		ids:          ids,
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", workerService)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.repo == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderPlacedEvent{}.EventName(), w.handle)
	w.subscriber.Subscribe(domorder.StatusChangedEvent{}.EventName(), w.handle)
	w.subscriber.Subscribe(dominv.RestockFailedEvent{}.EventName(), w.handle)
}

func (w *Worker) handle(ctx context.Context, e domoutbox.Event) (err error) {
	useCase := "audit.worker." + e.EventName()
	entry, ok := w.entryFor(ctx, e)
	if !ok {
		w.count(useCase, application.OutcomeIgnored)
		return nil
	}

	ctx, span := w.tracer.Start(ctx, spanPrefix+"AuditRecord",
		attribute.String("use_case", useCase),
		attribute.String("event", e.EventName()),
		attribute.String("order.id", entry.OrderID),
	)
	start := time.Now()
	outcome, status := application.OutcomeSuccess, "OK"

	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("use_case", useCase),
		observability.F("event", e.EventName()),
		observability.F("order_id", entry.OrderID),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}

	defer func() {
		lat := time.Since(start).Seconds()
		w.count(useCase, outcome)
		w.durHistogram.Observe(lat, observability.L("use_case", useCase))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.Err(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
		logger.Info("use_case_done", fields...)
	}()

	if err := w.repo.Append(ctx, entry); err != nil {
		outcome, status = application.OutcomeError, "REPO_APPEND_FAILED"
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

// entryFor maps e to an audit entry. The bus delivery id becomes the entry id
// so a store can recognise a repeated append.
func (w *Worker) entryFor(ctx context.Context, e domoutbox.Event) (*domaudit.Entry, bool) {
	id := domoutbox.EventID(ctx)
	if id == "" {
		id = w.ids.NewID()
	}
	entry := &domaudit.Entry{ID: id}
	switch evt := e.(type) {
	case domorder.OrderPlacedEvent:
		entry.OrderID = evt.OrderID
		entry.Kind = domaudit.KindPlaced
		entry.ActorID = evt.SenderID
		entry.ToStatus = string(domorder.StatusPending)
		entry.Detail = "total=" + evt.Total + " items=" + strconv.Itoa(evt.Items)
		entry.OccurredAt = evt.OccurredAt
	case domorder.StatusChangedEvent:
		entry.OrderID = evt.OrderID
		entry.Kind = domaudit.KindStatusChanged
		entry.ActorID = evt.ActorID
		entry.FromStatus = string(evt.From)
		entry.ToStatus = string(evt.To)
		entry.TxDigest = evt.TxDigest
		if evt.EscrowID != "" {
			entry.Detail = "escrow=" + evt.EscrowID
		}
		entry.OccurredAt = evt.OccurredAt
	case dominv.RestockFailedEvent:
		entry.OrderID = evt.OrderID
		entry.Kind = domaudit.KindRestockFailed
		entry.Detail = fmt.Sprintf("product=%s quantity=%d reason=%s error=%s",
			evt.ProductID, evt.Quantity, evt.Reason, evt.Error)
		entry.OccurredAt = evt.OccurredAt
	default:
		return nil, false
	}
	return entry, true
}

func (w *Worker) count(useCase, outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}
