package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/midtrans/midtrans-go/coreapi"

	"storefront/internal/checkout"
)

// CheckoutHandler serves the purchase flow.
type CheckoutHandler struct {
	Service *checkout.Service
	// PublicKey is handed to the client-side checkout widget.
	PublicKey string
}

func NewCheckoutHandler(svc *checkout.Service, publicKey string) *CheckoutHandler {
	return &CheckoutHandler{Service: svc, PublicKey: publicKey}
}

type CreateOrderRequest struct {
	BundleID string `json:"bundleId" binding:"required"`
}

// CreateOrder starts a purchase for the signed-in caller.
func (h *CheckoutHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	co, err := h.Service.Initiate(c.Request.Context(), req.BundleID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orderId":         co.OrderID,
		"providerOrderId": co.ProviderOrder.ID,
		"amount":          co.Amount,
		"amountMinor":     co.AmountMinor,
		"currency":        co.Currency,
		"bundle":          co.Bundle,
		"keyId":           h.PublicKey,
		"checkoutToken":   co.ProviderOrder.CheckoutToken,
		"redirectUrl":     co.ProviderOrder.RedirectURL,
	})
}

type VerifyPaymentRequest struct {
	ProviderOrderID   string `json:"providerOrderId" binding:"required"`
	ProviderPaymentID string `json:"providerPaymentId" binding:"required"`
	ProviderSignature string `json:"providerSignature" binding:"required"`
}

// VerifyPayment confirms a payment and returns the download token.
func (h *CheckoutHandler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	conf, err := h.Service.Confirm(c.Request.Context(), checkout.ConfirmRequest{
		ProviderOrderID:   req.ProviderOrderID,
		ProviderPaymentID: req.ProviderPaymentID,
		ProviderSignature: req.ProviderSignature,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"downloadToken": conf.Token.Token,
		"replayed":      conf.Replayed,
	})
}

type CancelPaymentRequest struct {
	ProviderOrderID string `json:"providerOrderId" binding:"required"`
}

// CancelPayment records that the customer closed the payment UI.
func (h *CheckoutHandler) CancelPayment(c *gin.Context) {
	var req CancelPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Service.Cancel(c.Request.Context(), req.ProviderOrderID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MidtransNotification handles Midtrans HTTP notifications. Settled payments
// go through the same confirmation as the client callback, so a notification
// racing the browser mints at most one token.
func (h *CheckoutHandler) MidtransNotification(c *gin.Context) {
	var notification coreapi.TransactionStatusResponse
	if err := c.ShouldBindJSON(&notification); err != nil {
		slog.WarnContext(c.Request.Context(), "failed to bind midtrans notification", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "Invalid notification format"})
		return
	}

	// Check settlement status
	if notification.TransactionStatus != "settlement" && notification.TransactionStatus != "capture" {
		slog.InfoContext(c.Request.Context(), "midtrans notification not settled",
			"provider_order_id", notification.OrderID, "status", notification.TransactionStatus)
		c.JSON(http.StatusOK, gin.H{"status": "ok (not settled)"})
		return
	}

	conf, err := h.Service.Confirm(c.Request.Context(), checkout.ConfirmRequest{
		ProviderOrderID:   notification.OrderID,
		ProviderPaymentID: notification.TransactionID,
		ProviderSignature: notification.SignatureKey,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if conf.Replayed {
		c.JSON(http.StatusOK, gin.H{"status": "ok (duplicate)"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
