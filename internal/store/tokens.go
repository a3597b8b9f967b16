package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"storefront/internal/models"
)

const tokenColumns = `id, token, order_id, bundle_id, user_id, asset_url, email, expires_at,
	access_count, last_access_at, created_at`

func insertToken(ctx context.Context, q sqlx.QueryerContext, order models.Order, assetURL, token string, expiresAt *time.Time, now time.Time) (*models.DownloadToken, error) {
	var tok models.DownloadToken
	query := `
		INSERT INTO download_tokens
		  (id, token, order_id, bundle_id, user_id, asset_url, email, expires_at, access_count, created_at)
		VALUES
		  ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9)
		RETURNING ` + tokenColumns
	err := sqlx.GetContext(ctx, q, &tok, query,
		uuid.NewString(), token, order.ID, order.BundleID, order.UserID, assetURL, order.Email, expiresAt, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert token: %w", err)
	}
	return &tok, nil
}

// IssueTokenForPaidOrder mints a token for an already paid order.
// ErrDuplicate means the order already has one.
func (s *Store) IssueTokenForPaidOrder(ctx context.Context, order models.Order, token string, expiresAt *time.Time) (*models.DownloadToken, error) {
	if order.Status != models.OrderPaid {
		return nil, ErrStatusMismatch
	}
	assetURL, err := orderAssetURL(ctx, s.db, order)
	if err != nil {
		return nil, err
	}
	if assetURL == "" {
		return nil, ErrAssetUnavailable
	}
	return insertToken(ctx, s.db, order, assetURL, token, expiresAt, s.now())
}

// GetToken fetches a download token by its exact token string.
func (s *Store) GetToken(ctx context.Context, token string) (*models.DownloadToken, error) {
	return s.getToken(ctx, `SELECT `+tokenColumns+` FROM download_tokens WHERE token = $1`, token)
}

// GetTokenByOrderID fetches the token minted for an order.
func (s *Store) GetTokenByOrderID(ctx context.Context, orderID string) (*models.DownloadToken, error) {
	return s.getToken(ctx, `SELECT `+tokenColumns+` FROM download_tokens WHERE order_id = $1`, orderID)
}

func (s *Store) getToken(ctx context.Context, query, arg string) (*models.DownloadToken, error) {
	var tok models.DownloadToken
	if err := s.db.GetContext(ctx, &tok, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &tok, nil
}

// RecordAccess increments the access counter of an unexpired token and moves
// last_access_at forward. ErrNotFound means the token is gone or expired as of at.
func (s *Store) RecordAccess(ctx context.Context, id string, at time.Time) (*models.DownloadToken, error) {
	var tok models.DownloadToken
	query := `
		UPDATE download_tokens
		SET access_count = access_count + 1,
		    last_access_at = GREATEST(COALESCE(last_access_at, $2), $2)
		WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)
		RETURNING ` + tokenColumns
	if err := s.db.GetContext(ctx, &tok, query, id, at.UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record access: %w", err)
	}
	return &tok, nil
}

// prefixed qualifies a column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
