package payment

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// MpesaClient talks to the Safaricom Daraja API: OAuth token acquisition
// and STK push initiation. The HTTP client carries a bounded timeout; the
// caller must not hold database locks across these calls.
type MpesaClient struct {
	consumerKey    string
	consumerSecret string
	shortCode      string
	passkey        string
	callbackURL    string
	baseURL        string

	httpClient *http.Client
}

func NewMpesaClientFromEnv() *MpesaClient {
	baseURL := os.Getenv("MPESA_BASE_URL")
	if baseURL == "" {
		baseURL = "https://sandbox.safaricom.co.ke"
	}
	return &MpesaClient{
		consumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		consumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		shortCode:      os.Getenv("MPESA_BUSINESS_SHORTCODE"),
		passkey:        os.Getenv("MPESA_PASSKEY"),
		callbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

type STKPushResult struct {
	CheckoutRequestID string
	CustomerMessage   string
}

// NormalizePhone converts an MSISDN to international format without the
// leading plus: "0712345678" and "+254712345678" both become
// "254712345678".
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "0") {
		return "254" + phone[1:]
	}
	return phone
}

// stkPassword derives the Daraja request password for a given timestamp
// (format 20060102150405).
func stkPassword(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// AccessToken fetches an OAuth token from the gateway.
func (c *MpesaClient) AccessToken() (string, error) {
	req, err := http.NewRequest(http.MethodGet,
		c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned HTTP %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("error decoding token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return tokenResp.AccessToken, nil
}

// STKPush asks the gateway to push a payment prompt to the payer's phone.
// Any failure (token, transport, gateway rejection) comes back as a single
// error carrying the gateway's message; nothing is retried here.
func (c *MpesaClient) STKPush(phoneNumber string, amount int, accountReference, description string) (*STKPushResult, error) {
	if amount < 1 {
		return nil, fmt.Errorf("amount must be at least 1")
	}

	token, err := c.AccessToken()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	msisdn := NormalizePhone(phoneNumber)
	if msisdn == "" {
		return nil, fmt.Errorf("invalid phone number")
	}

	timestamp := time.Now().Format("20060102150405")
	payload := map[string]interface{}{
		"BusinessShortCode": c.shortCode,
		"Password":          stkPassword(c.shortCode, c.passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            amount,
		"PartyA":            msisdn,
		"PartyB":            c.shortCode,
		"PhoneNumber":       msisdn,
		"CallBackURL":       c.callbackURL,
		"AccountReference":  accountReference,
		"TransactionDesc":   description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost,
		c.baseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stk push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stk push returned HTTP %d", resp.StatusCode)
	}

	var pushResp struct {
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		CustomerMessage     string `json:"CustomerMessage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return nil, fmt.Errorf("error decoding stk push response: %w", err)
	}

	if pushResp.ResponseCode != "0" {
		if pushResp.ResponseDescription == "" {
			pushResp.ResponseDescription = "payment request rejected"
		}
		return nil, fmt.Errorf("gateway rejected request: %s", pushResp.ResponseDescription)
	}

	return &STKPushResult{
		CheckoutRequestID: pushResp.CheckoutRequestID,
		CustomerMessage:   pushResp.CustomerMessage,
	}, nil
}
