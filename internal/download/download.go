// Package download redeems download tokens for asset URLs.
package download

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
)

// Store is the token side of the entitlement store.
type Store interface {
	GetToken(ctx context.Context, token string) (*models.DownloadToken, error)
	RecordAccess(ctx context.Context, id string, at time.Time) (*models.DownloadToken, error)
	GetBundle(ctx context.Context, id string) (*models.Bundle, error)
}

// URLResolver turns a cached asset URL into a fetchable one.
type URLResolver interface {
	Resolve(ctx context.Context, assetURL string) (string, error)
}

// AccessInfo describes a token without consuming an access.
type AccessInfo struct {
	BundleID     string     `json:"bundle_id"`
	BundleTitle  string     `json:"bundle_title,omitempty"`
	AccessCount  int        `json:"access_count"`
	LastAccessAt *time.Time `json:"last_access_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Controller redeems tokens.
type Controller struct {
	store    Store
	resolver URLResolver
	now      func() time.Time
}

// NewController returns a controller. resolver may be nil, in which case the
// cached asset URL is returned unchanged.
func NewController(s Store, resolver URLResolver) *Controller {
	return &Controller{store: s, resolver: resolver, now: time.Now}
}

// Redeem records one access and returns the URL to redirect to.
func (c *Controller) Redeem(ctx context.Context, token string) (string, error) {
	const op = "download.Redeem"

	tok, err := c.lookup(ctx, op, token)
	if err != nil {
		return "", err
	}

	now := c.now()
	if tok.Expired(now) {
		slog.InfoContext(ctx, "expired download token presented", "token_id", tok.ID, "order_id", tok.OrderID)
		return "", apperr.E(apperr.Expired, op, "This download link has expired.", nil)
	}

	target := tok.AssetURL
	if c.resolver != nil {
		target, err = c.resolver.Resolve(ctx, tok.AssetURL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to resolve asset url", "token_id", tok.ID, "order_id", tok.OrderID, "error", err)
			return "", apperr.E(apperr.Upstream, op, "The download is temporarily unavailable.", err)
		}
	}

	// Only redemptions that produced a URL are counted. The update re-checks
	// expiry, so a token expiring between lookup and here is still rejected.
	if _, err := c.store.RecordAccess(ctx, tok.ID, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperr.E(apperr.Expired, op, "This download link has expired.", err)
		}
		slog.ErrorContext(ctx, "failed to record download access", "token_id", tok.ID, "error", err)
		return "", apperr.E(apperr.Internal, op, "", err)
	}
	return target, nil
}

// Info describes a token. It does not count as an access.
func (c *Controller) Info(ctx context.Context, token string) (*AccessInfo, error) {
	const op = "download.Info"

	tok, err := c.lookup(ctx, op, token)
	if err != nil {
		return nil, err
	}
	if tok.Expired(c.now()) {
		return nil, apperr.E(apperr.Expired, op, "This download link has expired.", nil)
	}

	info := &AccessInfo{
		BundleID:     tok.BundleID,
		AccessCount:  tok.AccessCount,
		LastAccessAt: tok.LastAccessAt,
		ExpiresAt:    tok.ExpiresAt,
		CreatedAt:    tok.CreatedAt,
	}
	// The bundle may have been deleted since purchase; access is unaffected.
	if b, err := c.store.GetBundle(ctx, tok.BundleID); err == nil {
		info.BundleTitle = b.Title
	}
	return info, nil
}

func (c *Controller) lookup(ctx context.Context, op, token string) (*models.DownloadToken, error) {
	if token == "" {
		return nil, apperr.E(apperr.Validation, op, "Download token is required.", nil)
	}
	tok, err := c.store.GetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.E(apperr.NotFound, op, "Invalid download link.", err)
		}
		return nil, apperr.E(apperr.Internal, op, "", err)
	}
	return tok, nil
}
