package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"storefront/internal/models"
)

const orderColumns = `id, user_id, bundle_id, provider_order_id, provider_payment_id, provider_signature,
	amount, currency, asset_url, status, email, created_at, updated_at`

// PaymentUpdate carries the verified provider identifiers recorded on a paid order.
type PaymentUpdate struct {
	ProviderOrderID   string
	ProviderPaymentID string
	ProviderSignature string
}

// CreateOrder inserts o with status created.
func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	now := s.now()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Status = models.OrderCreated
	o.CreatedAt = now
	o.UpdatedAt = now

	query := `
		INSERT INTO orders
		  (id, user_id, bundle_id, provider_order_id, amount, currency, asset_url, status, email, created_at, updated_at)
		VALUES
		  (:id, :user_id, :bundle_id, :provider_order_id, :amount, :currency, :asset_url, :status, :email, :created_at, :updated_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, o); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// GetOrderByProviderID fetches an order by the gateway's order id.
func (s *Store) GetOrderByProviderID(ctx context.Context, providerOrderID string) (*models.Order, error) {
	var o models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE provider_order_id = $1`
	if err := s.db.GetContext(ctx, &o, query, providerOrderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// ListOrdersByUser returns a user's orders with their download token, newest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.OrderWithToken, error) {
	orders := []models.OrderWithToken{}
	query := `
		SELECT o.id, o.user_id, o.bundle_id, o.provider_order_id, o.provider_payment_id, o.provider_signature,
		       o.amount, o.currency, o.asset_url, o.status, o.email, o.created_at, o.updated_at,
		       COALESCE(b.title, '') AS bundle_title, t.token
		FROM orders o
		LEFT JOIN bundles b ON b.id = o.bundle_id
		LEFT JOIN download_tokens t ON t.order_id = o.id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
	`
	if err := s.db.SelectContext(ctx, &orders, query, userID); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// MarkPaidAndIssueToken flips the order created -> paid and inserts its download
// token in one transaction. The token gets the asset URL captured on the order at
// purchase time, or the bundle's current one for orders that predate it.
// ErrStatusMismatch means the order was not in created state; nothing is written.
// ErrAssetUnavailable means no asset could be found: the order is still committed
// as paid with its payment ids so the reconciler can mint the token later.
func (s *Store) MarkPaidAndIssueToken(ctx context.Context, upd PaymentUpdate, token string, expiresAt *time.Time) (*models.DownloadToken, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now()

	var order models.Order
	update := `
		UPDATE orders
		SET status = 'paid', provider_payment_id = $2, provider_signature = $3, updated_at = $4
		WHERE provider_order_id = $1 AND status = 'created'
		RETURNING ` + orderColumns
	err = tx.GetContext(ctx, &order, update, upd.ProviderOrderID, upd.ProviderPaymentID, upd.ProviderSignature, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("mark paid: %w", err)
	}

	assetURL, err := orderAssetURL(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	if assetURL == "" {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return nil, ErrAssetUnavailable
	}

	tok, err := insertToken(ctx, tx, order, assetURL, token, expiresAt, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return tok, nil
}

// orderAssetURL returns the asset captured on the order, falling back to the
// bundle's current asset. An empty result means there is none.
func orderAssetURL(ctx context.Context, q sqlx.QueryerContext, order models.Order) (string, error) {
	if order.AssetURL != "" {
		return order.AssetURL, nil
	}
	var assetURL string
	err := sqlx.GetContext(ctx, q, &assetURL, `SELECT asset_url FROM bundles WHERE id = $1`, order.BundleID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read asset url: %w", err)
	}
	return assetURL, nil
}

// FailAbandonedOrders moves orders still created before cutoff to failed.
func (s *Store) FailAbandonedOrders(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE orders SET status = 'failed', updated_at = $2
		WHERE status = 'created' AND created_at < $1
	`
	res, err := s.db.ExecContext(ctx, query, cutoff, s.now())
	if err != nil {
		return 0, fmt.Errorf("fail abandoned orders: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// PaidOrdersWithoutToken lists paid orders that have no download token.
func (s *Store) PaidOrdersWithoutToken(ctx context.Context, limit int) ([]models.Order, error) {
	orders := []models.Order{}
	query := `
		SELECT ` + prefixed("o", orderColumns) + `
		FROM orders o
		LEFT JOIN download_tokens t ON t.order_id = o.id
		WHERE o.status = 'paid' AND t.id IS NULL
		ORDER BY o.updated_at
		LIMIT $1
	`
	if err := s.db.SelectContext(ctx, &orders, query, limit); err != nil {
		return nil, fmt.Errorf("paid orders without token: %w", err)
	}
	return orders, nil
}

// Stats aggregates paid orders and downloads.
func (s *Store) Stats(ctx context.Context) (models.SalesStats, error) {
	var stats models.SalesStats
	query := `
		SELECT
		  (SELECT COUNT(*) FROM orders WHERE status = 'paid') AS paid_orders,
		  (SELECT COALESCE(SUM(amount), 0) FROM orders WHERE status = 'paid') AS revenue,
		  (SELECT COALESCE(SUM(access_count), 0) FROM download_tokens) AS total_downloads
	`
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return stats, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}
