package httppresentation

import (
	"context"
	"net/http"

	appAudit "github.com/Zhima-Mochi/escrowshop/internal/application/audit"
	"github.com/Zhima-Mochi/escrowshop/internal/application/fulfilment"
	appInventory "github.com/Zhima-Mochi/escrowshop/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/escrowshop/internal/application/order"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"
	"github.com/Zhima-Mochi/escrowshop/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// Authenticator resolves a bearer token to the calling principal.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (principal.Principal, error)
}

// RateLimiter admits or rejects one request for key.
type RateLimiter interface {
	Allow(key string) bool
}

type Deps struct {
	Orders     *appOrder.Engine
	Fulfilment *fulfilment.Service
	Catalogue  *appInventory.Catalogue
	History    *appAudit.History
	Auth       Authenticator
	Limiter    RateLimiter
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	Logger  observability.Logger
	Tel     observability.Observability
}

type Handler struct {
	orders     *appOrder.Engine
	fulfilment *fulfilment.Service
	catalogue  *appInventory.Catalogue
	history    *appAudit.History
	auth       Authenticator
	limiter    RateLimiter
	metrics    http.Handler

	log          observability.Logger
	reqCounter   observability.Counter   // http_requests_total{method,route,status}
	durHistogram observability.Histogram // http_request_duration_seconds{method,route,status}
}

func NewHandler(deps Deps) *Handler {
	tel := deps.Tel
	if tel == nil {
		tel = observability.Nop()
	}
	base := deps.Logger
	if base == nil {
		base = tel.Logger()
	}
	return &Handler{
		orders:       deps.Orders,
		fulfilment:   deps.Fulfilment,
		catalogue:    deps.Catalogue,
		history:      deps.History,
		auth:         deps.Auth,
		limiter:      deps.Limiter,
		metrics:      deps.Metrics,
		log:          base.With(observability.F("component", componentHTTPHandler)),
		reqCounter:   tel.Metrics().Counter(observability.MHTTPRequests),
		durHistogram: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	h.handle(r, http.MethodGet, "/health", h.handleHealth, public)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	h.handle(r, http.MethodPost, "/orders", h.handlePlaceOrder, authenticated)
	h.handle(r, http.MethodGet, "/orders", h.handleListOrders, authenticated)
	h.handle(r, http.MethodPost, "/orders/{orderID}/fund", h.handleFundOrder, authenticated)
	h.handle(r, http.MethodGet, "/orders/{orderID}/track", h.handleTrackOrder, authenticated)
	h.handle(r, http.MethodPost, "/orders/{orderID}/confirm", h.handleConfirmReceipt, authenticated)
	h.handle(r, http.MethodPost, "/orders/{orderID}/cancel", h.handleCancelOrder, authenticated)
	h.handle(r, http.MethodGet, "/orders/{orderID}/history", h.handleOrderHistory, authenticated)

	h.handle(r, http.MethodPost, "/vendor/products", h.handleAddProduct, authenticated)
	h.handle(r, http.MethodGet, "/vendor/products", h.handleListProducts, authenticated)
	h.handle(r, http.MethodPut, "/vendor/products/{productID}/stock", h.handleUpdateStock, authenticated)
	h.handle(r, http.MethodPut, "/vendor/products/{productID}/price", h.handleUpdatePrice, authenticated)
	h.handle(r, http.MethodDelete, "/vendor/products/{productID}", h.handleDeleteProduct, authenticated)
	h.handle(r, http.MethodGet, "/vendor/orders", h.handleVendorOrders, authenticated)
	h.handle(r, http.MethodPost, "/vendor/orders/{orderID}/prepare", h.handlePrepareGoods, authenticated)
	h.handle(r, http.MethodPost, "/vendor/orders/{orderID}/proof", h.handleUploadProof, authenticated)

	return r
}

type access int

const (
	public access = iota
	authenticated
)

// handle registers fn under method and pattern. Authenticated routes resolve
// the principal inside the observed span so rejections are still logged.
func (h *Handler) handle(r chi.Router, method, pattern string, fn http.HandlerFunc, acc access) {
	var next http.Handler = fn
	if acc == authenticated {
		next = h.withPrincipal(next)
	}
	r.Method(method, pattern, h.observe(route{method: method, pattern: pattern}, next))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type principalKey struct{}

func contextWithPrincipal(ctx context.Context, p principal.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) principal.Principal {
	p, _ := ctx.Value(principalKey{}).(principal.Principal)
	return p
}

// withPrincipal resolves the bearer token, applies the per-principal rate
// limit and adds principal fields to the request logger.
func (h *Handler) withPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.auth == nil {
			writeError(w, http.StatusUnauthorized, "authentication is not configured")
			return
		}
		p, err := h.auth.Resolve(r.Context(), bearerToken(r))
		if err != nil {
			logctx.FromOr(r.Context(), h.log).Warn("http_auth_rejected", observability.Err(err))
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		if h.limiter != nil && !h.limiter.Allow(p.ID) {
			writeError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return
		}
		ctx, _ := logctx.Enrich(contextWithPrincipal(r.Context(), p), h.log,
			observability.F("principal_id", p.ID),
			observability.F("principal_role", string(p.Role)),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
