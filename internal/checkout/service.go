// Package checkout runs the purchase workflow: provider order creation, payment
// confirmation and download token issuance.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/store"
)

// Store is the slice of the entitlement store the workflow needs.
type Store interface {
	GetBundle(ctx context.Context, id string) (*models.Bundle, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	CreateProfile(ctx context.Context, p models.Profile) (*models.Profile, error)
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrderByProviderID(ctx context.Context, providerOrderID string) (*models.Order, error)
	MarkPaidAndIssueToken(ctx context.Context, upd store.PaymentUpdate, token string, expiresAt *time.Time) (*models.DownloadToken, error)
	GetTokenByOrderID(ctx context.Context, orderID string) (*models.DownloadToken, error)
}

// PaidEvent is published after an order is paid and its token minted.
type PaidEvent struct {
	Order       models.Order
	BundleTitle string
	Token       models.DownloadToken
}

// Listener reacts to paid orders. Listener failures never fail a confirmation.
type Listener interface {
	OrderPaid(ctx context.Context, ev PaidEvent) error
}

// Checkout is returned to the client to open the payment UI.
type Checkout struct {
	OrderID       string                `json:"order_id"`
	ProviderOrder payment.ProviderOrder `json:"provider_order"`
	Amount        decimal.Decimal       `json:"amount"`
	AmountMinor   int64                 `json:"amount_minor"`
	Currency      string                `json:"currency"`
	Bundle        models.Bundle         `json:"bundle"`
}

// ConfirmRequest carries the identifiers the client got back from the processor.
type ConfirmRequest struct {
	ProviderOrderID   string
	ProviderPaymentID string
	ProviderSignature string
}

// Confirmation is the result of a successful payment confirmation.
// Replayed is set when the order had already been confirmed.
type Confirmation struct {
	Token    models.DownloadToken
	Replayed bool
}

// Service orchestrates purchases.
type Service struct {
	store     Store
	gateway   payment.Gateway
	currency  string
	listeners []Listener
	now       func() time.Time
	newToken  func() (string, error)
}

// NewService wires the workflow.
func NewService(s Store, gw payment.Gateway, currency string, listeners ...Listener) *Service {
	return &Service{
		store:     s,
		gateway:   gw,
		currency:  currency,
		listeners: listeners,
		now:       time.Now,
		newToken:  GenerateToken,
	}
}

// Initiate creates a provider order for a bundle and records a local order in
// created state. The caller must be authenticated.
func (s *Service) Initiate(ctx context.Context, bundleID string) (*Checkout, error) {
	const op = "checkout.Initiate"

	caller, ok := auth.FromContext(ctx)
	if !ok {
		return nil, apperr.E(apperr.AuthenticationRequired, op, "Please sign in to purchase.", nil)
	}
	if bundleID == "" {
		return nil, apperr.E(apperr.Validation, op, "bundleId is required.", nil)
	}

	bundle, err := s.store.GetBundle(ctx, bundleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.E(apperr.NotFound, op, "Bundle not found.", err)
		}
		return nil, apperr.E(apperr.Internal, op, "", err)
	}
	if bundle.AssetURL == "" {
		return nil, apperr.E(apperr.Conflict, op, "Bundle is not available for purchase.", nil)
	}
	if bundle.Price.IsNegative() {
		return nil, apperr.E(apperr.Internal, op, "", errors.New("negative bundle price"))
	}

	receipt := payment.ReceiptID(bundle.ID, s.now())
	amountMinor := payment.MinorUnits(bundle.Price)

	providerOrder, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		AmountMinor:   amountMinor,
		Currency:      s.currency,
		Receipt:       receipt,
		CustomerEmail: caller.Email,
		ItemName:      bundle.Title,
		Notes: map[string]string{
			"bundle_id": bundle.ID,
			"user_id":   caller.UserID,
		},
	})
	if errors.Is(err, payment.ErrUnsupportedAmount) {
		slog.WarnContext(ctx, "bundle price not chargeable by processor", "bundle_id", bundle.ID, "price", bundle.Price.String())
		return nil, apperr.E(apperr.Conflict, op, "Bundle price cannot be charged by the payment provider.", err)
	}
	if err != nil {
		slog.ErrorContext(ctx, "payment order creation failed", "bundle_id", bundle.ID, "receipt", receipt, "error", err)
		return nil, apperr.E(apperr.Upstream, op, "Payment gateway error.", err)
	}

	profile, err := s.ensureProfile(ctx, caller)
	if err != nil {
		return nil, err
	}

	email := caller.Email
	if email == "" {
		email = profile.Email
	}

	order := &models.Order{
		UserID:          &caller.UserID,
		BundleID:        bundle.ID,
		ProviderOrderID: providerOrder.ID,
		Amount:          bundle.Price,
		Currency:        s.currency,
		AssetURL:        bundle.AssetURL,
		Email:           email,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		slog.ErrorContext(ctx, "failed to persist order", "bundle_id", bundle.ID, "provider_order_id", providerOrder.ID, "error", err)
		return nil, apperr.E(apperr.Internal, op, "", err)
	}

	slog.InfoContext(ctx, "order created", "order_id", order.ID, "bundle_id", bundle.ID, "provider_order_id", providerOrder.ID)

	return &Checkout{
		OrderID:       order.ID,
		ProviderOrder: providerOrder,
		Amount:        order.Amount,
		AmountMinor:   amountMinor,
		Currency:      order.Currency,
		Bundle:        *bundle,
	}, nil
}

// ensureProfile returns the caller's profile, creating a customer profile on
// first purchase. Any failure aborts the purchase.
func (s *Service) ensureProfile(ctx context.Context, caller auth.Identity) (*models.Profile, error) {
	const op = "checkout.ensureProfile"

	profile, err := s.store.GetProfile(ctx, caller.UserID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.E(apperr.Internal, op, "", err)
	}
	if caller.Email == "" {
		return nil, apperr.E(apperr.Validation, op, "An email address is required to purchase.", nil)
	}

	profile, err = s.store.CreateProfile(ctx, models.Profile{
		ID:    caller.UserID,
		Email: caller.Email,
		Role:  models.RoleCustomer,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create profile", "user_id", caller.UserID, "error", err)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.E(apperr.Conflict, op, "Email is already linked to another account.", err)
		}
		return nil, apperr.E(apperr.Internal, op, "", err)
	}
	slog.InfoContext(ctx, "profile provisioned", "user_id", caller.UserID)
	return profile, nil
}

// Confirm verifies the payment signature, marks the order paid and mints its
// download token. Confirming an already paid order returns the existing token.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	const op = "checkout.Confirm"

	if req.ProviderOrderID == "" || req.ProviderPaymentID == "" || req.ProviderSignature == "" {
		return nil, apperr.E(apperr.Validation, op, "providerOrderId, providerPaymentId and providerSignature are required.", nil)
	}

	valid, err := s.gateway.VerifySignature(ctx, req.ProviderOrderID, req.ProviderPaymentID, req.ProviderSignature)
	if err != nil {
		slog.ErrorContext(ctx, "payment verification unavailable", "provider_order_id", req.ProviderOrderID, "error", err)
		return nil, apperr.E(apperr.Upstream, op, "Payment could not be confirmed.", err)
	}
	if !valid {
		slog.WarnContext(ctx, "payment signature rejected",
			"provider_order_id", req.ProviderOrderID, "provider_payment_id", req.ProviderPaymentID)
		return nil, apperr.E(apperr.SignatureInvalid, op, "Invalid payment signature.", nil)
	}

	order, err := s.store.GetOrderByProviderID(ctx, req.ProviderOrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.E(apperr.NotFound, op, "Order not found.", err)
		}
		return nil, apperr.E(apperr.Internal, op, "", err)
	}

	upd := store.PaymentUpdate{
		ProviderOrderID:   req.ProviderOrderID,
		ProviderPaymentID: req.ProviderPaymentID,
		ProviderSignature: req.ProviderSignature,
	}

	tok, err := s.markPaid(ctx, upd)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrStatusMismatch):
		return s.alreadyProcessed(ctx, order.ID, req)
	default:
		slog.ErrorContext(ctx, "payment verified but download token was not issued",
			"order_id", order.ID, "provider_order_id", req.ProviderOrderID,
			"provider_payment_id", req.ProviderPaymentID, "error", err)
		return nil, apperr.E(apperr.Consistency, op, "Payment received but the download could not be issued. Please contact support.", err)
	}

	order.Status = models.OrderPaid
	order.ProviderPaymentID = &req.ProviderPaymentID
	slog.InfoContext(ctx, "order paid", "order_id", order.ID, "provider_payment_id", req.ProviderPaymentID)

	s.publish(ctx, *order, *tok)
	return &Confirmation{Token: *tok}, nil
}

// markPaid retries on the off chance a freshly generated token collides.
func (s *Service) markPaid(ctx context.Context, upd store.PaymentUpdate) (*models.DownloadToken, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return nil, err
		}
		tok, err := s.store.MarkPaidAndIssueToken(ctx, upd, token, nil)
		if !errors.Is(err, store.ErrDuplicate) {
			return tok, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// alreadyProcessed handles a lost conditional update: a paid order answers with
// its existing token, anything else is rejected.
func (s *Service) alreadyProcessed(ctx context.Context, orderID string, req ConfirmRequest) (*Confirmation, error) {
	const op = "checkout.Confirm"

	current, err := s.store.GetOrderByProviderID(ctx, req.ProviderOrderID)
	if err != nil {
		return nil, apperr.E(apperr.Internal, op, "", err)
	}

	switch current.Status {
	case models.OrderPaid:
		tok, err := s.store.GetTokenByOrderID(ctx, orderID)
		if err != nil {
			slog.ErrorContext(ctx, "paid order has no download token",
				"order_id", orderID, "provider_order_id", req.ProviderOrderID,
				"provider_payment_id", req.ProviderPaymentID, "error", err)
			return nil, apperr.E(apperr.Consistency, op, "Payment received but the download could not be issued. Please contact support.", err)
		}
		if current.ProviderPaymentID != nil && *current.ProviderPaymentID != req.ProviderPaymentID {
			slog.WarnContext(ctx, "confirm replayed with a different payment id",
				"order_id", orderID, "recorded", *current.ProviderPaymentID, "received", req.ProviderPaymentID)
		}
		slog.InfoContext(ctx, "duplicate confirmation, already paid", "order_id", orderID)
		return &Confirmation{Token: *tok, Replayed: true}, nil
	default:
		slog.ErrorContext(ctx, "verified payment for an order that is not awaiting payment",
			"order_id", orderID, "status", current.Status,
			"provider_order_id", req.ProviderOrderID, "provider_payment_id", req.ProviderPaymentID)
		return nil, apperr.E(apperr.Conflict, op, "Order is no longer awaiting payment. Please contact support.", nil)
	}
}

func (s *Service) publish(ctx context.Context, order models.Order, tok models.DownloadToken) {
	if len(s.listeners) == 0 {
		return
	}
	ev := PaidEvent{Order: order, Token: tok}
	if b, err := s.store.GetBundle(ctx, order.BundleID); err == nil {
		ev.BundleTitle = b.Title
	}
	for _, l := range s.listeners {
		if err := l.OrderPaid(ctx, ev); err != nil {
			slog.WarnContext(ctx, "paid order listener failed", "order_id", order.ID, "error", err)
		}
	}
}

// Cancel records that the payment UI was dismissed. The order stays created.
func (s *Service) Cancel(ctx context.Context, providerOrderID string) error {
	const op = "checkout.Cancel"

	if providerOrderID == "" {
		return apperr.E(apperr.Validation, op, "providerOrderId is required.", nil)
	}
	order, err := s.store.GetOrderByProviderID(ctx, providerOrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.E(apperr.NotFound, op, "Order not found.", err)
		}
		return apperr.E(apperr.Internal, op, "", err)
	}
	slog.InfoContext(ctx, "payment dismissed by customer", "order_id", order.ID, "status", order.Status)
	return nil
}
