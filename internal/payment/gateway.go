// Package payment wraps the external payment processor: provider order creation
// and verification of the signature returned after checkout.
package payment

//go:generate mockgen -source=gateway.go -destination=mock_gateway.go -package=payment

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxReceiptLen is the longest receipt id processors accept.
const MaxReceiptLen = 40

// ErrUnsupportedAmount is returned when the processor cannot charge the exact amount.
var ErrUnsupportedAmount = errors.New("payment: amount not supported by processor")

// OrderRequest describes a provider-side order.
type OrderRequest struct {
	AmountMinor   int64
	Currency      string
	Receipt       string
	CustomerEmail string
	ItemName      string
	Notes         map[string]string
}

// ProviderOrder is what the processor returned for a new order.
// CheckoutToken and RedirectURL are only set by processors with a hosted checkout.
type ProviderOrder struct {
	ID            string `json:"id"`
	CheckoutToken string `json:"checkout_token,omitempty"`
	RedirectURL   string `json:"redirect_url,omitempty"`
}

// Gateway is the contract the order workflow relies on.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (ProviderOrder, error)
	VerifySignature(ctx context.Context, providerOrderID, providerPaymentID, signature string) (bool, error)
}

// MinorUnits converts a decimal amount into the processor's minor unit (x100).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// ReceiptID derives a receipt id of at most MaxReceiptLen characters from the
// bundle id and a millisecond timestamp.
func ReceiptID(bundleID string, now time.Time) string {
	id := strings.ReplaceAll(bundleID, "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	r := "rcpt_" + id + "_" + strconv.FormatInt(now.UnixMilli(), 36)
	if len(r) > MaxReceiptLen {
		r = r[:MaxReceiptLen]
	}
	return r
}
