package payment

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{" 0712345678 ", "254712345678"},
		{"+254 is stripped only as prefix", "254 is stripped only as prefix"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in))
	}
}

func TestStkPassword(t *testing.T) {
	got := stkPassword("174379", "passkey", "20260314101500")
	want := base64.StdEncoding.EncodeToString([]byte("174379passkey20260314101500"))
	assert.Equal(t, want, got)

	decoded, err := base64.StdEncoding.DecodeString(got)
	require.NoError(t, err)
	assert.Equal(t, "174379passkey20260314101500", string(decoded))
}

func testClient(baseURL string) *MpesaClient {
	return &MpesaClient{
		consumerKey:    "key",
		consumerSecret: "secret",
		shortCode:      "174379",
		passkey:        "passkey",
		callbackURL:    "https://example.com/api/v1/payments/callback",
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: 5 * time.Second},
	}
}

func TestSTKPush_Success(t *testing.T) {
	var pushed map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "key", user)
			assert.Equal(t, "secret", pass)
			json.NewEncoder(w).Encode(map[string]string{"access_token": "token-123"})
		case "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&pushed))
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode":      "0",
				"CheckoutRequestID": "ws_CO_12345",
				"CustomerMessage":   "Success. Request accepted for processing",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	result, err := testClient(server.URL).STKPush("0712345678", 1500, "BOOKING-42", "Plumbing service")
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_12345", result.CheckoutRequestID)

	assert.Equal(t, "254712345678", pushed["PhoneNumber"])
	assert.Equal(t, "254712345678", pushed["PartyA"])
	assert.Equal(t, "174379", pushed["BusinessShortCode"])
	assert.Equal(t, "BOOKING-42", pushed["AccountReference"])
	assert.Equal(t, float64(1500), pushed["Amount"])
	assert.Equal(t, "CustomerPayBillOnline", pushed["TransactionType"])
	assert.NotEmpty(t, pushed["Password"])
}

func TestSTKPush_GatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "token-123"})
		case "/mpesa/stkpush/v1/processrequest":
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode":        "1",
				"ResponseDescription": "Insufficient balance on utility account",
			})
		}
	}))
	defer server.Close()

	result, err := testClient(server.URL).STKPush("254712345678", 100, "BOOKING-7", "Cleaning service")
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient balance")
}

func TestSTKPush_TokenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer server.Close()

	result, err := testClient(server.URL).STKPush("254712345678", 100, "BOOKING-7", "Cleaning service")
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access token")
}

func TestSTKPush_RejectsZeroAmount(t *testing.T) {
	result, err := testClient("http://unreachable.invalid").STKPush("254712345678", 0, "BOOKING-7", "desc")
	assert.Nil(t, result)
	require.Error(t, err)
}
