package httppresentation

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/auth"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"
	"github.com/Zhima-Mochi/escrowshop/internal/observability/logctx"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "escrowshop.http"

// route is the registered template of an endpoint. Metrics and span names use
// it instead of the raw path to keep label cardinality bounded.
type route struct {
	method  string
	pattern string
}

func (r route) String() string { return r.method + " " + r.pattern }

// observe wraps one endpoint with its server span, the request-scoped logger,
// the access log line and the RED metrics. All four read the status from the
// same wrapped writer.
func (h *Handler) observe(rt route, next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	name := rt.String()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", rt.pattern),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		rid := r.Header.Get(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(headerRequestID, rid)

		fields := []observability.Field{observability.F("request_id", rid)}
		if sc := span.SpanContext(); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		ctx, log := logctx.Enrich(ctx, h.log, fields...)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		labels := []observability.Label{
			observability.L("method", rt.method),
			observability.L("route", rt.pattern),
			observability.L("status", strconv.Itoa(status)),
		}
		h.reqCounter.Add(1, labels...)
		h.durHistogram.Observe(elapsed.Seconds(), labels...)

		log.Info("http_access",
			observability.F("route", name),
			observability.F("path", r.URL.Path),
			observability.F("status", status),
			observability.F("bytes", ww.BytesWritten()),
			observability.F("latency_ms", elapsed.Milliseconds()),
		)
	})
}

func bearerToken(r *http.Request) string {
	return auth.ExtractBearer(r.Header.Get("Authorization"))
}
