package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"storefront/internal/models"
)

const bundleColumns = `id, title, description, image_urls, price, image_count, asset_url, category, created_at, updated_at`

// GetBundle fetches a bundle by id.
func (s *Store) GetBundle(ctx context.Context, id string) (*models.Bundle, error) {
	var b models.Bundle
	query := `SELECT ` + bundleColumns + ` FROM bundles WHERE id = $1`
	if err := s.db.GetContext(ctx, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get bundle: %w", err)
	}
	return &b, nil
}

// ListBundles returns every bundle, newest first.
func (s *Store) ListBundles(ctx context.Context) ([]models.Bundle, error) {
	bundles := []models.Bundle{}
	query := `SELECT ` + bundleColumns + ` FROM bundles ORDER BY created_at DESC`
	if err := s.db.SelectContext(ctx, &bundles, query); err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	return bundles, nil
}

// CreateBundle inserts b, assigning its id and timestamps.
func (s *Store) CreateBundle(ctx context.Context, b *models.Bundle) error {
	now := s.now()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.ImageURLs == nil {
		b.ImageURLs = models.StringList{}
	}
	b.ImageCount = len(b.ImageURLs)
	b.CreatedAt = now
	b.UpdatedAt = now

	query := `
		INSERT INTO bundles
		  (id, title, description, image_urls, price, image_count, asset_url, category, created_at, updated_at)
		VALUES
		  (:id, :title, :description, :image_urls, :price, :image_count, :asset_url, :category, :created_at, :updated_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, b); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create bundle: %w", err)
	}
	return nil
}

// UpdateBundle overwrites the editable fields of b.
func (s *Store) UpdateBundle(ctx context.Context, b *models.Bundle) error {
	b.UpdatedAt = s.now()
	if b.ImageURLs == nil {
		b.ImageURLs = models.StringList{}
	}
	b.ImageCount = len(b.ImageURLs)

	query := `
		UPDATE bundles SET
		  title = :title, description = :description, image_urls = :image_urls, price = :price,
		  image_count = :image_count, asset_url = :asset_url, category = :category, updated_at = :updated_at
		WHERE id = :id
	`
	res, err := s.db.NamedExecContext(ctx, query, b)
	if err != nil {
		return fmt.Errorf("update bundle: %w", err)
	}
	return expectOne(res)
}

// DeleteBundle removes a bundle. Orders and tokens keep their copies.
func (s *Store) DeleteBundle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bundles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete bundle: %w", err)
	}
	return expectOne(res)
}

// AppendBundleImage adds an image URL to the end of the bundle's list.
func (s *Store) AppendBundleImage(ctx context.Context, id, imageURL string) error {
	query := `
		UPDATE bundles SET
		  image_urls = image_urls || jsonb_build_array($2::text),
		  image_count = image_count + 1,
		  updated_at = $3
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, imageURL, s.now())
	if err != nil {
		return fmt.Errorf("append bundle image: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
