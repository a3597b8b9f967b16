package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// Midtrans uses Snap for checkout. The receipt id doubles as the provider
// order id, the transaction id is the payment id, and the signature is the
// notification signature_key, re-checked against the Core API status.
type Midtrans struct {
	serverKey  string
	SnapClient snap.Client
	CoreClient coreapi.Client
}

// NewMidtrans configures Snap and Core API clients for the given environment.
func NewMidtrans(serverKey string, production bool) *Midtrans {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, env)

	var c coreapi.Client
	c.New(serverKey, env)

	return &Midtrans{serverKey: serverKey, SnapClient: s, CoreClient: c}
}

// CreateOrder creates a Snap transaction. Midtrans amounts have no minor unit,
// so AmountMinor must be a whole multiple of 100.
func (m *Midtrans) CreateOrder(ctx context.Context, req OrderRequest) (ProviderOrder, error) {
	if req.AmountMinor%100 != 0 {
		return ProviderOrder{}, fmt.Errorf("%w: midtrans cannot charge %d minor units", ErrUnsupportedAmount, req.AmountMinor)
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.Receipt,
			GrossAmt: req.AmountMinor / 100,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			Email: req.CustomerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.Receipt,
				Name:  req.ItemName,
				Price: req.AmountMinor / 100,
				Qty:   1,
			},
		},
	}

	snapResp, mErr := m.SnapClient.CreateTransaction(snapReq)
	if snapResp == nil {
		return ProviderOrder{}, fmt.Errorf("midtrans create transaction: %v", mErr)
	}
	if mErr != nil {
		slog.WarnContext(ctx, "midtrans returned a response and an error", "receipt", req.Receipt, "error", mErr.Message)
	}

	return ProviderOrder{
		ID:            req.Receipt,
		CheckoutToken: snapResp.Token,
		RedirectURL:   snapResp.RedirectURL,
	}, nil
}

// VerifySignature confirms the transaction with the Core API and compares the signature.
func (m *Midtrans) VerifySignature(ctx context.Context, providerOrderID, providerPaymentID, signature string) (bool, error) {
	if providerOrderID == "" || providerPaymentID == "" || signature == "" {
		return false, nil
	}

	apiResp, mErr := m.CoreClient.CheckTransaction(providerOrderID)
	if apiResp == nil {
		return false, fmt.Errorf("midtrans check transaction: %v", mErr)
	}
	if mErr != nil {
		slog.WarnContext(ctx, "midtrans core api returned a response and an error", "provider_order_id", providerOrderID, "error", mErr.Message)
	}

	return verifyMidtransStatus(apiResp, m.serverKey, providerOrderID, providerPaymentID, signature), nil
}

func verifyMidtransStatus(resp *coreapi.TransactionStatusResponse, serverKey, orderID, paymentID, signature string) bool {
	if resp.OrderID != orderID || resp.TransactionID != paymentID {
		return false
	}
	if resp.TransactionStatus != "settlement" && resp.TransactionStatus != "capture" {
		return false
	}
	if resp.FraudStatus == "deny" || resp.FraudStatus == "challenge" {
		return false
	}
	expected := MidtransSignature(resp.OrderID, resp.StatusCode, resp.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// MidtransSignature computes SHA512(order_id + status_code + gross_amount + server_key).
func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}
