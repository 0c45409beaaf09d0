package payclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"riciti/app/models/payment"
	"riciti/pkg/poller"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ poller.Client = (*Client)(nil)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/payments/initiate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		if body["publicInvoiceId"] == "paid" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"status":"error","error":"Invoice is already paid"}`))
			return
		}
		assert.Equal(t, "0712345678", body["phoneNumber"])
		_, _ = w.Write([]byte(`{"status":"success","data":{"paymentId":"p-1","checkoutRequestId":"ws_CO_1","customerMessage":"Success"}}`))
	})
	mux.HandleFunc("/v1/invoices/pub-1/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"status":"success","data":{"invoiceId":"pub-1","isPaid":false,"paidAt":null,
			"latestPayment":{"id":"p-1","status":"PROCESSING","amount":"10","currency":"KES","phoneNumber":"254******678"}}}`))
	})
	mux.HandleFunc("/v1/payments/query", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"status":"CANCELLED","resultCode":"1032","resultDesc":"Request cancelled by user"}}`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL + "/")
	ctx := context.Background()

	res, err := c.Initiate(ctx, "pub-1", "0712345678")
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", res.CheckoutRequestID)
	assert.Equal(t, "p-1", res.PaymentID)

	st, err := c.Status(ctx, "pub-1")
	require.NoError(t, err)
	assert.False(t, st.IsPaid)
	require.NotNil(t, st.LatestPayment)
	assert.Equal(t, payment.StatusProcessing, st.LatestPayment.Status)

	q, err := c.Query(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, q.Status)
	assert.Equal(t, "1032", q.ResultCode)
}

func TestClientErrors(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.Initiate(ctx, "paid", "0712345678")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Conflict())
	assert.Equal(t, "Invoice is already paid", apiErr.Message)

	err = c.do(ctx, http.MethodGet, "/broken", nil, nil)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)

	_, err = c.Status(ctx, "unknown")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
