package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront-sync/internal/payment"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, nil), server
}

// ============================================
// Failure Classification Tests
// ============================================

func TestClient_ClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthRequired},
		{"forbidden", http.StatusForbidden, ErrUnavailable},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			defer server.Close()

			_, err := client.FetchCart(context.Background(), "token")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_TransportFailureIsUnavailable(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {})
	server.Close() // connection refused from here on

	_, err := client.FetchCart(context.Background(), "token")

	assert.ErrorIs(t, err, ErrUnavailable)
}

// ============================================
// Cart Endpoint Tests
// ============================================

func TestClient_FetchCart_Enveloped(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/cart", r.URL.Path)
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"productId":"p1","productName":"Water Bottle","unitPrice":100,"quantity":2}]}`))
	})
	defer server.Close()

	lines, err := client.FetchCart(context.Background(), "token-abc")

	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, Line{ProductID: "p1", ProductName: "Water Bottle", UnitPrice: 100, Quantity: 2}, lines[0])
}

func TestClient_FetchCart_BarePayload(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"productId":"p1","unitPrice":100,"quantity":1}]`))
	})
	defer server.Close()

	lines, err := client.FetchCart(context.Background(), "token")

	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "p1", lines[0].ProductID)
}

func TestClient_UpdateQuantity_RequestShape(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	err := client.UpdateQuantity(context.Background(), "token", "p1", 4)

	require.NoError(t, err)
	assert.Equal(t, "/cart/items/p1/quantity", gotPath)
	assert.Equal(t, "p1", gotBody["productId"])
	assert.Equal(t, float64(4), gotBody["quantity"])
}

func TestClient_AddAndRemoveItem(t *testing.T) {
	var calls []string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()
	ctx := context.Background()

	require.NoError(t, client.AddItem(ctx, "token", "p1", 2))
	require.NoError(t, client.RemoveItem(ctx, "token", "p1"))

	assert.Equal(t, []string{"POST /cart/items", "DELETE /cart/items/p1"}, calls)
}

// ============================================
// Payment Endpoint Tests
// ============================================

func TestClient_CreateOrder(t *testing.T) {
	var gotBody map[string]any
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"data":{"orderId":"order-9","amountMinorUnits":20000,"currency":"INR"}}`))
	})
	defer server.Close()

	order, err := client.CreateOrder(context.Background(), "token", 20000, "INR")

	require.NoError(t, err)
	assert.Equal(t, payment.Order{OrderID: "order-9", AmountMinor: 20000, Currency: "INR"}, order)
	assert.Equal(t, float64(20000), gotBody["amountMinorUnits"])
	assert.Equal(t, "INR", gotBody["currency"])
}

func TestClient_VerifyPayment_ForwardsAssertionVerbatim(t *testing.T) {
	var gotBody []byte
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment/verify", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = body
		_, _ = w.Write([]byte(`{"confirmed":true,"confirmationId":"conf-1"}`))
	})
	defer server.Close()

	assertion := payment.Assertion{
		OrderID: "order-9",
		Payload: json.RawMessage(`{"signature":"opaque-blob"}`),
	}
	conf, err := client.VerifyPayment(context.Background(), "token", assertion)

	require.NoError(t, err)
	assert.True(t, conf.Confirmed)
	assert.Equal(t, "conf-1", conf.ConfirmationID)
	assert.JSONEq(t, `{"order_id":"order-9","payload":{"signature":"opaque-blob"}}`, string(gotBody))
}
