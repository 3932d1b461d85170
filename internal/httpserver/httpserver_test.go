package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shop_checkout/internal/gateway"
	"github.com/Skotchmaster/shop_checkout/internal/models"
	"github.com/Skotchmaster/shop_checkout/internal/notify"
	"github.com/Skotchmaster/shop_checkout/internal/pricing"
	"github.com/Skotchmaster/shop_checkout/internal/repo"
	"github.com/Skotchmaster/shop_checkout/internal/service"
	"github.com/Skotchmaster/shop_checkout/internal/testutil"
	"github.com/Skotchmaster/shop_checkout/internal/transport"
	"github.com/Skotchmaster/shop_checkout/pkg/logging"
	loggingmw "github.com/Skotchmaster/shop_checkout/pkg/middleware/logging"
	"github.com/Skotchmaster/shop_checkout/pkg/mykafka"
	"github.com/Skotchmaster/shop_checkout/pkg/tokens"
)

const (
	keySecret     = "key-secret"
	webhookSecret = "webhook-secret"
)

var jwtSecret = []byte("test-access-secret")

type stubProvider struct {
	mu       sync.Mutex
	created  int
	payments map[string]gateway.Payment
}

func (p *stubProvider) CreateOrder(_ context.Context, params gateway.OrderParams) (*gateway.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created++
	return &gateway.Order{ID: fmt.Sprintf("order_%d", p.created), Amount: params.AmountMinor, Currency: params.Currency, Notes: params.Notes}, nil
}

func (p *stubProvider) FetchPayment(_ context.Context, id string) (*gateway.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pay, ok := p.payments[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return &pay, nil
}

func (p *stubProvider) FetchOrderPayments(_ context.Context, gwOrderID string) ([]gateway.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []gateway.Payment
	for _, pay := range p.payments {
		if pay.OrderID == gwOrderID {
			out = append(out, pay)
		}
	}
	return out, nil
}

type jobCounter struct {
	mu   sync.Mutex
	jobs int
}

func (n *jobCounter) Enqueue(context.Context, notify.Job) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs++
	return true, nil
}

type testEnv struct {
	e        *echo.Echo
	repo     *repo.GormRepo
	provider *stubProvider
	notifier *jobCounter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	r := testutil.NewRepo(t)
	env := &testEnv{
		repo:     r,
		provider: &stubProvider{payments: map[string]gateway.Payment{}},
		notifier: &jobCounter{},
	}

	policy := pricing.Policy{
		TaxRate:         decimal.RequireFromString("0.05"),
		ShippingFee:     decimal.RequireFromString("50"),
		FreeShippingMin: decimal.RequireFromString("500"),
	}
	events := mykafka.Discard{}
	addresses := &service.AddressService{Repo: r}
	rec := &service.Reconciler{Repo: r, Events: events, Notifier: env.notifier}

	e := echo.New()
	e.Use(loggingmw.RequestLogger(logging.NewWithWriter(&bytes.Buffer{}, "error")))
	Register(e, &Deps{
		CatalogHandler: &CatalogHTTP{Svc: &service.CatalogService{Repo: r, Events: events}},
		CartHandler:    &CartHTTP{Svc: &service.CartService{Repo: r, Policy: policy}},
		AddressHandler: &AddressHTTP{Svc: addresses},
		OrderHandler: &OrderHTTP{Svc: &service.OrderService{
			Repo: r, Addresses: addresses, Policy: policy, Currency: "INR", Events: events, Notifier: env.notifier,
		}},
		PaymentHandler: &PaymentHTTP{
			Svc: &service.PaymentService{
				Repo:          r,
				Provider:      env.provider,
				Reconciler:    rec,
				KeyID:         "key_test",
				KeySecret:     keySecret,
				WebhookSecret: webhookSecret,
			},
			Reconciler: rec,
		},
		JWTSecret: jwtSecret,
		Ready:     r.Ping,
	})
	env.e = e
	return env
}

func token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	tok, err := tokens.NewAccessToken(userID, role, time.Hour, jwtSecret)
	require.NoError(t, err)
	return tok
}

func (env *testEnv) do(t *testing.T, method, path string, body any, tok string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		raw = b
	default:
		var err error
		raw, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) seedCart(t *testing.T, userID uuid.UUID) {
	t.Helper()
	tee := testutil.SeedProduct(t, env.repo.DB, "Tee", "400.00", "S,M,L")
	mug := testutil.SeedProduct(t, env.repo.DB, "Mug", "250.00", "")
	testutil.SeedCartItem(t, env.repo.DB, userID, tee, "M", 2)
	testutil.SeedCartItem(t, env.repo.DB, userID, mug, "", 1)
}

func orderBody(method string) map[string]any {
	return map[string]any{
		"payment_method": method,
		"shipping_address": map[string]any{
			"name":        "Asha Rao",
			"phone":       "9876543210",
			"street":      "12 MG Road",
			"city":        "Bengaluru",
			"state":       "KA",
			"postal_code": "560001",
			"country":     "IN",
		},
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", nil, "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", nil, "", nil).Code)
}

func TestCreateOrder_Statuses(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	tok := token(t, userID, "user")

	rec := env.do(t, http.MethodPost, "/api/v1/orders", orderBody("COD"), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/orders", orderBody("COD"), tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty cart")

	env.seedCart(t, userID)

	bad := orderBody("COD")
	bad["shipping_address"].(map[string]any)["postal_code"] = "12"
	rec = env.do(t, http.MethodPost, "/api/v1/orders", bad, tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/orders", orderBody("COD"), tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[models.Order](t, rec)
	assert.Equal(t, models.StatusPaid, order.Status)
	assert.Equal(t, "1050.00", order.TotalPrice.StringFixed(2))

	rec = env.do(t, http.MethodGet, "/api/v1/cart", nil, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[map[string][]models.CartItem](t, rec)
	assert.Empty(t, cart["items"])
	assert.Equal(t, 1, env.notifier.jobs)
}

func TestCartSummary(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	env.seedCart(t, userID)

	rec := env.do(t, http.MethodGet, "/api/v1/cart/summary", nil, token(t, userID, "user"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[transport.CartResponse](t, rec)
	assert.Equal(t, "1000.00", res.Summary.CartTotalExclTax.StringFixed(2))
	assert.Equal(t, "50.00", res.Summary.TaxAmount.StringFixed(2))
	assert.Equal(t, "1050.00", res.Summary.GrandTotal.StringFixed(2))
}

func TestOnlineCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	tok := token(t, userID, "user")
	env.seedCart(t, userID)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", orderBody("ONLINE"), tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decode[models.Order](t, rec)
	assert.Equal(t, models.StatusPending, order.Status)

	rec = env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/payment-intent", nil, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	intent := decode[transport.PaymentIntentResponse](t, rec)
	assert.Equal(t, int64(105000), intent.AmountMinor)

	rec = env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/payment-failure",
		transport.PaymentFailureRequest{Reason: "dismissed"}, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	failure := decode[transport.PaymentFailureResponse](t, rec)
	assert.True(t, failure.Retryable)

	rec = env.do(t, http.MethodGet, "/api/v1/cart", nil, tok, nil)
	cart := decode[map[string][]models.CartItem](t, rec)
	assert.Len(t, cart["items"], 2)

	// forged client success
	pay := transport.ConfirmPaymentRequest{
		GatewayPaymentID: "pay_1",
		GatewayOrderID:   intent.GatewayOrderID,
		Signature:        "deadbeef",
	}
	rec = env.do(t, http.MethodPut, "/api/v1/orders/"+order.ID.String()+"/pay", pay, tok, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "contact support")

	env.provider.payments["pay_1"] = gateway.Payment{
		ID:       "pay_1",
		OrderID:  intent.GatewayOrderID,
		Amount:   intent.AmountMinor,
		Currency: "INR",
		Status:   gateway.PaymentCaptured,
	}
	pay.Signature = gateway.SignPayment(keySecret, intent.GatewayOrderID, "pay_1")

	for i := 0; i < 2; i++ {
		rec = env.do(t, http.MethodPut, "/api/v1/orders/"+order.ID.String()+"/pay", pay, tok, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		paid := decode[models.Order](t, rec)
		assert.Equal(t, models.StatusPaid, paid.Status)
	}
	assert.Equal(t, 1, env.notifier.jobs)

	rec = env.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String()+"/payment-status", nil, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[transport.PaymentStatusResponse](t, rec)
	assert.Equal(t, models.StatusPaid, status.Status)
}

func TestPay_DeclinedIsPaymentRequired(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	tok := token(t, userID, "user")
	env.seedCart(t, userID)

	order := decode[models.Order](t, env.do(t, http.MethodPost, "/api/v1/orders", orderBody("ONLINE"), tok, nil))
	intent := decode[transport.PaymentIntentResponse](t,
		env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/payment-intent", nil, tok, nil))

	env.provider.payments["pay_x"] = gateway.Payment{
		ID:               "pay_x",
		OrderID:          intent.GatewayOrderID,
		Amount:           intent.AmountMinor,
		Status:           gateway.PaymentFailed,
		ErrorDescription: "insufficient funds",
	}
	rec := env.do(t, http.MethodPut, "/api/v1/orders/"+order.ID.String()+"/pay", transport.ConfirmPaymentRequest{
		GatewayPaymentID: "pay_x",
		GatewayOrderID:   intent.GatewayOrderID,
		Signature:        gateway.SignPayment(keySecret, intent.GatewayOrderID, "pay_x"),
	}, tok, nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient funds")
}

func TestWebhook(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	tok := token(t, userID, "user")
	env.seedCart(t, userID)

	order := decode[models.Order](t, env.do(t, http.MethodPost, "/api/v1/orders", orderBody("ONLINE"), tok, nil))
	intent := decode[transport.PaymentIntentResponse](t,
		env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/payment-intent", nil, tok, nil))

	var ev gateway.WebhookEvent
	ev.Event = gateway.EventPaymentCaptured
	ev.Payload.Payment.Entity = gateway.Payment{
		ID:       "pay_hook",
		OrderID:  intent.GatewayOrderID,
		Amount:   intent.AmountMinor - 1000,
		Currency: "INR",
		Status:   gateway.PaymentCaptured,
	}
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/webhooks/payments", body, "", map[string]string{WebhookSignatureHeader: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	sig := gateway.SignWebhook(webhookSecret, body)
	rec = env.do(t, http.MethodPost, "/api/v1/webhooks/payments", body, "", map[string]string{WebhookSignatureHeader: sig})
	assert.Equal(t, http.StatusConflict, rec.Code, "underpaid")

	ev.Payload.Payment.Entity.Amount = intent.AmountMinor
	body, err = json.Marshal(ev)
	require.NoError(t, err)
	sig = gateway.SignWebhook(webhookSecret, body)
	rec = env.do(t, http.MethodPost, "/api/v1/webhooks/payments", body, "", map[string]string{WebhookSignatureHeader: sig})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[models.Order](t, env.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil, tok, nil))
	assert.Equal(t, models.StatusPaid, got.Status)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	userTok := token(t, uuid.New(), "user")
	adminTok := token(t, uuid.New(), tokens.RoleAdmin)

	product := map[string]any{"name": "Tee", "description": "cotton", "price": "399", "sizes": []string{"S", "M"}, "count": 5}
	rec := env.do(t, http.MethodPost, "/api/v1/admin/products", product, userTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/admin/products", product, adminTok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Product](t, rec)

	rec = env.do(t, http.MethodGet, "/api/v1/products?page=1&size=10", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[transport.Page[models.Product]](t, rec)
	require.Len(t, page.Data, 1)
	assert.Equal(t, created.ID, page.Data[0].ID)
	assert.EqualValues(t, 1, page.Meta.Total)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/discrepancies", nil, adminTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/admin/orders/"+uuid.NewString()+"/status", map[string]string{"status": "Shipped"}, adminTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/products/not-a-uuid", nil, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddresses(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	tok := token(t, userID, "user")
	env.seedCart(t, userID)

	addr := orderBody("COD")["shipping_address"]
	rec := env.do(t, http.MethodPost, "/api/v1/addresses", addr, tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[models.Address](t, rec)
	assert.True(t, saved.Selected)

	rec = env.do(t, http.MethodPost, "/api/v1/addresses", map[string]string{"name": "x"}, tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/orders", map[string]string{"payment_method": "COD"}, tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[models.Order](t, rec)
	assert.Equal(t, "560001", order.ShippingAddress.PostalCode)

	rec = env.do(t, http.MethodDelete, "/api/v1/addresses/"+saved.ID.String(), nil, tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
