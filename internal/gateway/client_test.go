package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, KeyID: "key_test", KeySecret: "secret_test"})
}

func TestClient_CreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key_test", user)
		assert.Equal(t, "secret_test", pass)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)

		var params OrderParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, int64(105000), params.AmountMinor)

		_ = json.NewEncoder(w).Encode(Order{ID: "order_1", Amount: params.AmountMinor, Currency: params.Currency, Status: "created"})
	})

	o, err := c.CreateOrder(context.Background(), OrderParams{AmountMinor: 105000, Currency: "INR", Receipt: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "order_1", o.ID)
	assert.Equal(t, int64(105000), o.Amount)
}

func TestClient_FetchPayment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Payment{ID: "pay_1", OrderID: "order_1", Amount: 500, Status: PaymentCaptured})
	})

	p, err := c.FetchPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.True(t, p.Succeeded())
	assert.Equal(t, "order_1", p.OrderID)
}

func TestClient_FetchOrderPayments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/order_1/payments", r.URL.Path)
		_, _ = w.Write([]byte(`{"items":[{"id":"pay_1","status":"failed","error_description":"card declined"},{"id":"pay_2","status":"captured"}]}`))
	})

	ps, err := c.FetchOrderPayments(context.Background(), "order_1")
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "card declined", ps[0].FailureReason())
}

func TestClient_ErrorClassification(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`))
		case "/payments/bad":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"invalid"}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})

	_, err := c.FetchPayment(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.FetchPayment(context.Background(), "bad")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid", apiErr.Description)

	_, err = c.FetchPayment(context.Background(), "boom")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 5; i++ {
		_, err := c.FetchPayment(context.Background(), "p")
		require.ErrorIs(t, err, ErrUnavailable)
	}
	_, err := c.FetchPayment(context.Background(), "p")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(5), calls.Load())
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	for i := 0; i < 8; i++ {
		_, err := c.FetchPayment(context.Background(), "p")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(8), calls.Load())
}
