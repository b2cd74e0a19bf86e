package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront/internal/handler"
	"storefront/internal/infra/memstore"
	"storefront/internal/logging"
	"storefront/internal/payment"
	"storefront/internal/ratelimit"
	"storefront/internal/textgen"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *http.Server {
	t.Helper()

	store := memstore.New()
	reg := payment.NewRegistry()
	productUC := usecase.NewProductUsecase(store, nil)
	opts := Options{Addr: ":0", CORSOrigins: []string{"https://shop.example"}, Logger: logging.Discard()}

	e := New(opts)
	RegisterRoutes(e, Handlers{
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		Order:        handler.NewOrderHandler(usecase.NewOrderUsecase(store, decimal.Zero, nil)),
		AdminOrder:   handler.NewAdminOrderHandler(usecase.NewAdminOrderUsecase(store, false, nil)),
		Payment:      handler.NewPaymentHandler(usecase.NewPaymentUsecase(store, reg, "", nil)),
		Webhook:      handler.NewWebhookHandler(usecase.NewWebhookUsecase(store, reg, nil)),
		Assistant:    handler.NewAssistantHandler(usecase.NewAssistantUsecase(textgen.NewClient("", "", time.Second), nil)),
	}, Gates{
		Limiter:           ratelimit.NewMemory(),
		Window:            time.Minute,
		PaymentsPerWindow: 1,
		AIPerWindow:       1,
		APIToken:          "tok",
		JWTSecret:         "secret",
	}, opts)

	return newHTTPServer(opts, e)
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	// Secure
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestServer_CORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/payments/ecocash", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type,idempotency-key")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/payments/ecocash", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_AssistantUnconfigured(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/ai/generate", strings.NewReader(`{"prompt":"Describe maize meal 10kg"}`))
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// 2回目はレート制限（AIPerWindow=1）
	req = httptest.NewRequest(http.MethodPost, "/ai/generate", strings.NewReader(`{"prompt":"again"}`))
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
