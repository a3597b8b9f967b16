package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
)

// ReconcileStore is what the reconciler reads and repairs.
type ReconcileStore interface {
	PaidOrdersWithoutToken(ctx context.Context, limit int) ([]models.Order, error)
	IssueTokenForPaidOrder(ctx context.Context, order models.Order, token string, expiresAt *time.Time) (*models.DownloadToken, error)
	FailAbandonedOrders(ctx context.Context, cutoff time.Time) (int64, error)
}

// Report summarises one reconciliation pass.
type Report struct {
	TokensIssued    int
	TokensPending   int
	OrdersAbandoned int64
}

// Reconciler repairs paid orders that lack a token and expires orders whose
// payment was never completed.
type Reconciler struct {
	store        ReconcileStore
	abandonedTTL time.Duration
	batchSize    int
	now          func() time.Time
	newToken     func() (string, error)
}

// NewReconciler returns a reconciler. abandonedTTL <= 0 disables expiry.
func NewReconciler(s ReconcileStore, abandonedTTL time.Duration) *Reconciler {
	return &Reconciler{
		store:        s,
		abandonedTTL: abandonedTTL,
		batchSize:    100,
		now:          time.Now,
		newToken:     GenerateToken,
	}
}

// Run performs one pass.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var rep Report

	orders, err := r.store.PaidOrdersWithoutToken(ctx, r.batchSize)
	if err != nil {
		return rep, err
	}
	for _, o := range orders {
		token, err := r.newToken()
		if err != nil {
			return rep, err
		}
		_, err = r.store.IssueTokenForPaidOrder(ctx, o, token, nil)
		switch {
		case err == nil:
			rep.TokensIssued++
			slog.InfoContext(ctx, "issued missing download token", "order_id", o.ID)
		case errors.Is(err, store.ErrDuplicate):
			// Confirmed concurrently.
		default:
			rep.TokensPending++
			pid := ""
			if o.ProviderPaymentID != nil {
				pid = *o.ProviderPaymentID
			}
			slog.ErrorContext(ctx, "paid order still without download token",
				"order_id", o.ID, "provider_order_id", o.ProviderOrderID, "provider_payment_id", pid, "error", err)
		}
	}

	if r.abandonedTTL > 0 {
		n, err := r.store.FailAbandonedOrders(ctx, r.now().Add(-r.abandonedTTL))
		if err != nil {
			return rep, err
		}
		rep.OrdersAbandoned = n
	}
	return rep, nil
}

// Loop runs a pass every interval until ctx is cancelled.
func (r *Reconciler) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rep, err := r.Run(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "reconciliation failed", "error", err)
				continue
			}
			slog.InfoContext(ctx, "reconciliation complete",
				"tokens_issued", rep.TokensIssued, "tokens_pending", rep.TokensPending,
				"orders_abandoned", rep.OrdersAbandoned)
		}
	}
}
