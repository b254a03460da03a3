package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayPal struct {
	tokenCalls   atomic.Int32
	lastCreate   map[string]any
	captureReply string
	status       int
}

func (f *fakePayPal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastCreate))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"PP-123","status":"CREATED"}`))
	})
	mux.HandleFunc("/v2/checkout/orders/PP-123/capture", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(f.captureReply))
	})
	return mux
}

func setupClient(t *testing.T, f *fakePayPal) *Client {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:   srv.URL + "/",
		ClientID:  "client",
		AppSecret: "secret",
		Timeout:   time.Second,
	})
}

func TestAccessToken_Cached(t *testing.T) {
	f := &fakePayPal{}
	client := setupClient(t, f)

	tok, err := client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	_, err = client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestAccessToken_BadCredentials(t *testing.T) {
	f := &fakePayPal{}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, ClientID: "client", AppSecret: "wrong"})
	_, err := client.AccessToken(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.NotErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestCreateOrder(t *testing.T) {
	f := &fakePayPal{}
	client := setupClient(t, f)

	id, err := client.CreateOrder(context.Background(), decimal.RequireFromString("138"))
	require.NoError(t, err)
	assert.Equal(t, "PP-123", id)

	assert.Equal(t, "CAPTURE", f.lastCreate["intent"])
	units := f.lastCreate["purchase_units"].([]any)
	amount := units[0].(map[string]any)["amount"].(map[string]any)
	assert.Equal(t, "138.00", amount["value"])
	assert.Equal(t, "USD", amount["currency_code"])
}

func TestCaptureOrder(t *testing.T) {
	f := &fakePayPal{captureReply: `{
		"id": "PP-123",
		"status": "COMPLETED",
		"payer": {"email_address": "buyer@example.com"},
		"purchase_units": [{"payments": {"captures": [{"amount": {"value": "138.00"}}]}}]
	}`}
	client := setupClient(t, f)

	capture, err := client.CaptureOrder(context.Background(), "PP-123")
	require.NoError(t, err)
	assert.Equal(t, "PP-123", capture.ID)
	assert.Equal(t, StatusCompleted, capture.Status)
	assert.Equal(t, "buyer@example.com", capture.PayerEmail)
	assert.Equal(t, "138", capture.Amount.String())
}

func TestServerErrorsMapToProviderUnavailable(t *testing.T) {
	f := &fakePayPal{status: http.StatusBadGateway}
	client := setupClient(t, f)

	_, err := client.CreateOrder(context.Background(), decimal.NewFromInt(10))
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, ClientID: "client", AppSecret: "secret"})
	for i := 0; i < 8; i++ {
		_, err := client.AccessToken(context.Background())
		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	}

	// the breaker stops forwarding after five consecutive failures
	assert.Equal(t, int32(5), hits.Load())
}

func TestTimeoutMapsToProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, ClientID: "client", AppSecret: "secret", Timeout: 20 * time.Millisecond})
	_, err := client.AccessToken(context.Background())
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}
