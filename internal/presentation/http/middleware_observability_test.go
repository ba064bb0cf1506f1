package httppresentation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	obsprovider "github.com/Zhima-Mochi/escrowshop/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type telemetry struct {
	observability.Observability
	reg  *prometheus.Registry
	logs *observer.ObservedLogs
}

func newTelemetry() telemetry {
	core, logs := observer.New(zapcore.InfoLevel)
	reg := prometheus.NewRegistry()
	return telemetry{
		Observability: obsprovider.New(nil, zaplogger.New(zap.New(core)), prometrics.Instruments(prometrics.New(reg, "", ""))),
		reg:           reg,
		logs:          logs,
	}
}

func TestObserveEchoesRequestID(t *testing.T) {
	tel := newTelemetry()
	router := NewHandler(Deps{Tel: tel}).Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))

	access := tel.logs.FilterMessage("http_access").All()
	require.Len(t, access, 1)
	fields := access[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "GET /health", fields["route"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}

func TestObserveGeneratesRequestID(t *testing.T) {
	router := NewHandler(Deps{Tel: newTelemetry()}).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestObserveRecordsRouteTemplate(t *testing.T) {
	tel := newTelemetry()
	router := NewHandler(Deps{Tel: tel}).Router()

	for _, id := range []string{"o1", "o2"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+id+"/track", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	expected := `
# HELP http_requests_total Total number of HTTP requests.
# TYPE http_requests_total counter
http_requests_total{method="GET",route="/orders/{orderID}/track",status="401"} 2
`
	require.NoError(t, testutil.GatherAndCompare(tel.reg, strings.NewReader(expected), "http_requests_total"))
}
