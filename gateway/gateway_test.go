package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/example/smartcart/pkg/catalog"
	"github.com/example/smartcart/pkg/checkout"
	"github.com/example/smartcart/pkg/config"
	"github.com/example/smartcart/pkg/eventbus"
	"github.com/example/smartcart/pkg/ledger"
	"github.com/example/smartcart/pkg/models"
	"github.com/example/smartcart/pkg/repository"
	"github.com/example/smartcart/pkg/theft"
	"github.com/example/smartcart/pkg/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type approvingVerifier struct{ verified bool }

func (v approvingVerifier) Verify(context.Context, *models.Product, vision.Evidence) vision.Result {
	return vision.Result{Verified: v.verified, Confidence: 0.9, AlertTriggered: !v.verified}
}

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	ctx := context.Background()

	store := repository.NewMemoryStore()
	require.NoError(t, catalog.Seed(ctx, store))

	logger := zap.NewNop()
	bus := eventbus.New(100, logger)
	t.Cleanup(bus.Shutdown)

	locks := ledger.NewCartLocks()
	cat := catalog.New(store)
	led := ledger.NewService(store, cat, locks, bus, nil, logger)
	correlator := theft.NewCorrelator(store, approvingVerifier{verified: true}, locks, bus, nil, theft.Config{}, logger)
	gate := checkout.NewGate(store, locks, bus, nil, nil, logger)

	cfg := &config.Config{}
	cfg.Server.Name = "smartcart-test"

	gw := New(cfg, logger, store, cat, led, correlator, gate, bus)
	gw.SetupRoutes()
	return gw
}

func doJSON(t *testing.T, gw *Gateway, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	gw.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	gw := newTestGateway(t)
	w := doJSON(t, gw, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCartLifecycleOverHTTP(t *testing.T) {
	gw := newTestGateway(t)

	w := doJSON(t, gw, http.MethodPost, "/api/v1/cart", map[string]string{"session_id": "http-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	cart := decode(t, w)
	cartID := int(cart["id"].(float64))

	w = doJSON(t, gw, http.MethodPost, "/api/v1/cart/1/items", map[string]interface{}{"product_id": 1, "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code)
	added := decode(t, w)
	require.NotNil(t, added["item"])

	w = doJSON(t, gw, http.MethodGet, "/api/v1/cart/1/billing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bill := decode(t, w)
	assert.Equal(t, "USD", bill["currency"])
	assert.Positive(t, bill["calculation"].(map[string]interface{})["final_amount"].(float64))

	w = doJSON(t, gw, http.MethodGet, "/api/v1/cart/session/http-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bySession := decode(t, w)
	assert.Equal(t, float64(cartID), bySession["id"])
}

func TestAddItemToUnknownCartReturns404(t *testing.T) {
	gw := newTestGateway(t)

	w := doJSON(t, gw, http.MethodPost, "/api/v1/cart/999/items", map[string]interface{}{"product_id": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidCartIDReturns400(t *testing.T) {
	gw := newTestGateway(t)

	w := doJSON(t, gw, http.MethodGet, "/api/v1/cart/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecountRaisesAlerts(t *testing.T) {
	gw := newTestGateway(t)

	doJSON(t, gw, http.MethodPost, "/api/v1/cart", map[string]string{"session_id": "s"})
	doJSON(t, gw, http.MethodPost, "/api/v1/cart/1/items", map[string]interface{}{"product_id": 1})

	w := doJSON(t, gw, http.MethodPost, "/api/v1/cart/1/recount", map[string]interface{}{"detected_count": 5})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(5), body["detected_count"])
	assert.NotEmpty(t, body["alerts"])

	w = doJSON(t, gw, http.MethodGet, "/api/v1/alerts?cart_id=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)
	assert.Positive(t, listed["count"].(float64))
}

func TestRecountRequiresEvidence(t *testing.T) {
	gw := newTestGateway(t)
	doJSON(t, gw, http.MethodPost, "/api/v1/cart", nil)

	w := doJSON(t, gw, http.MethodPost, "/api/v1/cart/1/recount", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyItemEndpoint(t *testing.T) {
	gw := newTestGateway(t)

	doJSON(t, gw, http.MethodPost, "/api/v1/cart", nil)
	w := doJSON(t, gw, http.MethodPost, "/api/v1/cart/1/items", map[string]interface{}{"product_id": 1})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, gw, http.MethodPost, "/api/v1/ai/verify-item/1", map[string]interface{}{})
	require.Equal(t, http.StatusOK, w.Code)
	result := decode(t, w)
	assert.Equal(t, true, result["verified"])

	w = doJSON(t, gw, http.MethodPost, "/api/v1/ai/verify-item/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentFlowOverHTTP(t *testing.T) {
	gw := newTestGateway(t)

	doJSON(t, gw, http.MethodPost, "/api/v1/cart", nil)
	doJSON(t, gw, http.MethodPost, "/api/v1/cart/1/items", map[string]interface{}{"product_id": 1, "quantity": 2})

	w := doJSON(t, gw, http.MethodPost, "/api/v1/payment/1/qr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	qr := decode(t, w)
	assert.NotEmpty(t, qr["payment_reference"])

	w = doJSON(t, gw, http.MethodPost, "/api/v1/payment/process", map[string]interface{}{
		"cart_id":        1,
		"payment_method": "qr_code",
	})
	require.Equal(t, http.StatusOK, w.Code)
	paid := decode(t, w)
	assert.Equal(t, "completed", paid["status"])
	assert.NotNil(t, paid["receipt"])

	// Settled carts refuse further payment.
	w = doJSON(t, gw, http.MethodPost, "/api/v1/payment/process", map[string]interface{}{
		"cart_id":        1,
		"payment_method": "qr_code",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlertResolutionOverHTTP(t *testing.T) {
	gw := newTestGateway(t)

	doJSON(t, gw, http.MethodPost, "/api/v1/cart", nil)
	doJSON(t, gw, http.MethodPost, "/api/v1/cart/1/items", map[string]interface{}{"product_id": 1})
	doJSON(t, gw, http.MethodPost, "/api/v1/cart/1/recount", map[string]interface{}{"detected_count": 3})

	w := doJSON(t, gw, http.MethodGet, "/api/v1/alerts?cart_id=1&status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)
	alerts := listed["alerts"].([]interface{})
	require.NotEmpty(t, alerts)
	alertID := int(alerts[0].(map[string]interface{})["id"].(float64))

	w = doJSON(t, gw, http.MethodPost, "/api/v1/alerts/"+strconv.Itoa(alertID)+"/resolve", map[string]string{"resolution": "false_positive"})
	require.Equal(t, http.StatusOK, w.Code)
	resolved := decode(t, w)
	assert.Equal(t, "false_positive", resolved["status"])

	w = doJSON(t, gw, http.MethodPost, "/api/v1/alerts/"+strconv.Itoa(alertID)+"/resolve", map[string]string{"resolution": "resolved"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProductEndpoints(t *testing.T) {
	gw := newTestGateway(t)

	w := doJSON(t, gw, http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)
	assert.Positive(t, listed["count"].(float64))

	w = doJSON(t, gw, http.MethodGet, "/api/v1/products/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, gw, http.MethodGet, "/api/v1/products/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBusHistoryEndpoint(t *testing.T) {
	gw := newTestGateway(t)

	doJSON(t, gw, http.MethodPost, "/api/v1/cart", nil)
	doJSON(t, gw, http.MethodPost, "/api/v1/cart/1/items", map[string]interface{}{"product_id": 1})

	w := doJSON(t, gw, http.MethodGet, "/api/v1/iot/messages?topic=cart/1/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Positive(t, body["count"].(float64))
}

func TestAdminEndpoints(t *testing.T) {
	gw := newTestGateway(t)

	doJSON(t, gw, http.MethodPost, "/api/v1/cart", nil)
	doJSON(t, gw, http.MethodPost, "/api/v1/cart/1/items", map[string]interface{}{"product_id": 1})
	doJSON(t, gw, http.MethodPost, "/api/v1/cart/1/recount", map[string]interface{}{"detected_count": 4})

	w := doJSON(t, gw, http.MethodGet, "/api/v1/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Positive(t, stats["products"].(float64))
	assert.Positive(t, stats["active_alerts"].(float64))

	w = doJSON(t, gw, http.MethodGet, "/api/v1/admin/alerts/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)
	assert.Positive(t, summary["total"].(float64))
	assert.NotEmpty(t, summary["by_type"])
}
