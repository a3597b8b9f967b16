package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Razorpay talks to the Razorpay Orders API. Checkout signatures are
// hex(HMAC-SHA256(order_id + "|" + payment_id, key_secret)).
type Razorpay struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

// NewRazorpay returns a Razorpay gateway. baseURL is usually https://api.razorpay.com/v1.
func NewRazorpay(keyID, keySecret, baseURL string) *Razorpay {
	return &Razorpay{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// KeyID is the public key the browser checkout needs.
func (r *Razorpay) KeyID() string {
	return r.keyID
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder creates an order for req.AmountMinor in req.Currency.
func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (ProviderOrder, error) {
	body, err := json.Marshal(razorpayOrderRequest{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return ProviderOrder{}, fmt.Errorf("marshal order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return ProviderOrder{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.SetBasicAuth(r.keyID, r.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return ProviderOrder{}, fmt.Errorf("razorpay create order: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ProviderOrder{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr razorpayErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Description != "" {
			return ProviderOrder{}, fmt.Errorf("razorpay create order: status %d: %s", resp.StatusCode, apiErr.Error.Description)
		}
		return ProviderOrder{}, fmt.Errorf("razorpay create order: status %d", resp.StatusCode)
	}

	var out razorpayOrderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return ProviderOrder{}, fmt.Errorf("decode order: %w", err)
	}
	if out.ID == "" {
		return ProviderOrder{}, fmt.Errorf("razorpay create order: empty order id")
	}
	return ProviderOrder{ID: out.ID}, nil
}

// VerifySignature checks the checkout signature locally.
func (r *Razorpay) VerifySignature(_ context.Context, providerOrderID, providerPaymentID, signature string) (bool, error) {
	if providerOrderID == "" || providerPaymentID == "" || signature == "" {
		return false, nil
	}
	expected := Sign(r.keySecret, providerOrderID, providerPaymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))), nil
}

// Sign computes the checkout signature for an order/payment pair.
func Sign(secret, providerOrderID, providerPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(providerOrderID + "|" + providerPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
