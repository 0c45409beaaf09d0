package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaraja serves the three Daraja endpoints with overridable handlers
type fakeDaraja struct {
	tokenCalls atomic.Int32
	token      http.HandlerFunc
	push       http.HandlerFunc
	query      http.HandlerFunc

	mu       sync.Mutex
	lastPush map[string]interface{}
}

func (f *fakeDaraja) serve(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if f.token != nil {
			f.token(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-1", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.lastPush = body
		f.mu.Unlock()
		if f.push != nil {
			f.push(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"MerchantRequestID":   "29115-34620561-1",
			"CheckoutRequestID":   "ws_CO_1",
			"ResponseCode":        "0",
			"ResponseDescription": "Success. Request accepted for processing",
			"CustomerMessage":     "Success. Request accepted for processing",
		})
	})
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		if f.query != nil {
			f.query(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"ResponseCode":      "0",
			"CheckoutRequestID": "ws_CO_1",
			"ResultCode":        "0",
			"ResultDesc":        "The service request is processed successfully.",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		BaseURL:         srv.URL,
		ConsumerKey:     "key",
		ConsumerSecret:  "secret",
		Passkey:         "passkey",
		ShortCode:       "174379",
		Timeout:         2 * time.Second,
		TokenMaxRetries: 2,
		TokenRetryBase:  time.Millisecond,
	}, WithClock(func() time.Time {
		return time.Date(2026, 1, 2, 0, 4, 5, 0, time.UTC)
	}))
}

func TestAccessTokenIsCached(t *testing.T) {
	fake := &fakeDaraja{token: func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-1", "expires_in": "3599"})
	}}
	c := newTestClient(fake.serve(t))

	for i := 0; i < 3; i++ {
		tok, err := c.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
	}
	assert.EqualValues(t, 1, fake.tokenCalls.Load())
}

func TestAccessTokenRetriesServerErrors(t *testing.T) {
	fake := &fakeDaraja{}
	fake.token = func(w http.ResponseWriter, r *http.Request) {
		if fake.tokenCalls.Load() < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "tok-3", "expires_in": 3599})
	}
	c := newTestClient(fake.serve(t))

	tok, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-3", tok)
	assert.EqualValues(t, 3, fake.tokenCalls.Load())
}

func TestAccessTokenGivesUpAfterRetries(t *testing.T) {
	fake := &fakeDaraja{token: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}}
	c := newTestClient(fake.serve(t))

	_, err := c.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrTokenUnavailable)
	assert.EqualValues(t, 3, fake.tokenCalls.Load())
}

func TestAccessTokenDoesNotRetryAuthRejection(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		fake := &fakeDaraja{token: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}}
		c := newTestClient(fake.serve(t))

		_, err := c.AccessToken(context.Background())
		assert.ErrorIs(t, err, ErrAuthRejected)
		assert.EqualValues(t, 1, fake.tokenCalls.Load())
	}
}

func TestInitiateSTKPush(t *testing.T) {
	fake := &fakeDaraja{}
	fake.push = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]string{
			"MerchantRequestID": "m-1",
			"CheckoutRequestID": "ws_CO_1",
			"ResponseCode":      "0",
			"CustomerMessage":   "Success. Request accepted for processing",
		})
	}
	c := newTestClient(fake.serve(t))

	resp, err := c.InitiateSTKPush(context.Background(), STKPushRequest{
		PhoneNumber:      "0712345678",
		Amount:           decimal.RequireFromString("9.20"),
		AccountReference: "INV-2026-ABCDEFGHIJ",
		TransactionDesc:  "Invoice Payment Fee",
		CallbackURL:      "https://riciti.test/v1/payments/callback?token=s",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", resp.CheckoutRequestID)
	assert.Equal(t, "m-1", resp.MerchantRequestID)
	assert.Equal(t, "10", resp.Amount.String())

	fake.mu.Lock()
	body := fake.lastPush
	fake.mu.Unlock()

	// 00:04:05 UTC is 03:04:05 EAT
	assert.Equal(t, "20260102030405", body["Timestamp"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("174379passkey20260102030405")), body["Password"])
	assert.Equal(t, "CustomerPayBillOnline", body["TransactionType"])
	assert.EqualValues(t, 10, body["Amount"])
	assert.Equal(t, "254712345678", body["PartyA"])
	assert.Equal(t, "254712345678", body["PhoneNumber"])
	assert.Equal(t, "174379", body["PartyB"])
	assert.Equal(t, "INV-2026-ABC", body["AccountReference"])
	assert.Equal(t, "Invoice Payme", body["TransactionDesc"])
}

func TestInitiateSTKPushDefaultsDescription(t *testing.T) {
	fake := &fakeDaraja{}
	c := newTestClient(fake.serve(t))

	_, err := c.InitiateSTKPush(context.Background(), STKPushRequest{
		PhoneNumber: "254712345678", Amount: decimal.NewFromInt(10), AccountReference: "INV-1",
	})
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "Payment", fake.lastPush["TransactionDesc"])
}

func TestInitiateSTKPushProviderError(t *testing.T) {
	fake := &fakeDaraja{push: func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"requestId":    "r-1",
			"errorCode":    "400.002.02",
			"errorMessage": "Bad Request - Invalid Amount",
		})
	}}
	c := newTestClient(fake.serve(t))

	_, err := c.InitiateSTKPush(context.Background(), STKPushRequest{PhoneNumber: "0712345678", Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, ErrChargeInitiationFailed)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "400.002.02", perr.Code)
	assert.Equal(t, "Bad Request - Invalid Amount", perr.Message)
}

func TestInitiateSTKPushEmbeddedErrorCode(t *testing.T) {
	fake := &fakeDaraja{push: func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"errorCode": "500.001.1001", "errorMessage": "Unable to lock subscriber"})
	}}
	c := newTestClient(fake.serve(t))

	_, err := c.InitiateSTKPush(context.Background(), STKPushRequest{PhoneNumber: "0712345678", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrChargeInitiationFailed)
}

func TestInitiateSTKPushRejectsBadPhoneWithoutCalling(t *testing.T) {
	fake := &fakeDaraja{}
	c := newTestClient(fake.serve(t))

	_, err := c.InitiateSTKPush(context.Background(), STKPushRequest{PhoneNumber: "12345", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrInvalidPhoneFormat)
	assert.EqualValues(t, 0, fake.tokenCalls.Load())
}

func TestQuerySTKPush(t *testing.T) {
	fake := &fakeDaraja{query: func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "ws_CO_9", body["CheckoutRequestID"])
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ResponseCode": "0",
			"ResultCode":   "1032",
			"ResultDesc":   "Request cancelled by user",
		})
	}}
	c := newTestClient(fake.serve(t))

	resp, err := c.QuerySTKPush(context.Background(), "ws_CO_9")
	require.NoError(t, err)
	assert.Equal(t, ResultCancelled, resp.Code())
	assert.Equal(t, "Request cancelled by user", resp.ResultDesc)
}

func TestQuerySTKPushNumericResultCode(t *testing.T) {
	fake := &fakeDaraja{query: func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ResultCode": 0, "ResultDesc": "ok"})
	}}
	c := newTestClient(fake.serve(t))

	resp, err := c.QuerySTKPush(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, resp.Code())
}

func TestQuerySTKPushStillProcessing(t *testing.T) {
	fake := &fakeDaraja{query: func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"errorCode":    "500.001.1001",
			"errorMessage": "The transaction is being processed",
		})
	}}
	c := newTestClient(fake.serve(t))

	_, err := c.QuerySTKPush(context.Background(), "ws_CO_1")
	assert.ErrorIs(t, err, ErrQueryPending)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrorCodeQueryPending, perr.Code)
	assert.Equal(t, "The transaction is being processed", perr.Message)
}

func TestQuerySTKPushFailure(t *testing.T) {
	fake := &fakeDaraja{query: func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"errorCode": "400.002.02", "errorMessage": "Invalid CheckoutRequestID"})
	}}
	c := newTestClient(fake.serve(t))

	_, err := c.QuerySTKPush(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrQueryFailed)
}

func TestConfigBaseURL(t *testing.T) {
	assert.Equal(t, SandboxURL, Config{}.baseURL())
	assert.Equal(t, ProductionURL, Config{Environment: EnvProduction}.baseURL())
	assert.Equal(t, "http://x", Config{BaseURL: "http://x/"}.baseURL())
}
