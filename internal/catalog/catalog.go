// Package catalog manages bundles: public reads behind a cache and admin writes.
package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
)

// Store is the bundle side of the entitlement store.
type Store interface {
	GetBundle(ctx context.Context, id string) (*models.Bundle, error)
	ListBundles(ctx context.Context) ([]models.Bundle, error)
	CreateBundle(ctx context.Context, b *models.Bundle) error
	UpdateBundle(ctx context.Context, b *models.Bundle) error
	DeleteBundle(ctx context.Context, id string) error
	AppendBundleImage(ctx context.Context, id, imageURL string) error
}

// ImageUploader stores preview images and returns their public URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, bucket, dir, filename, contentType string, data io.Reader) (string, error)
}

// BundleInput is the admin-editable part of a bundle.
type BundleInput struct {
	Title       string          `json:"title" binding:"required"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    *string         `json:"category"`
	AssetURL    string          `json:"asset_url"`
	ImageURLs   []string        `json:"image_urls"`
}

// Validate checks the rules every stored bundle satisfies.
func (in BundleInput) Validate() map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = "title is required"
	}
	if in.Price.IsNegative() {
		fields["price"] = "price must be greater than or equal to 0"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (in BundleInput) apply(b *models.Bundle) {
	b.Title = strings.TrimSpace(in.Title)
	b.Description = in.Description
	b.Price = in.Price
	b.Category = in.Category
	b.AssetURL = in.AssetURL
	b.ImageURLs = models.StringList(in.ImageURLs)
}

// ValidationError carries per-field messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "invalid bundle" }

// Service is the catalog.
type Service struct {
	store       Store
	cache       Cache
	uploader    ImageUploader
	imageBucket string

	// WholeUnitPrices rejects prices with a fractional part, for processors
	// that have no minor currency unit.
	WholeUnitPrices bool
}

// NewService wires the catalog. cache may be nil.
func NewService(s Store, cache Cache, uploader ImageUploader, imageBucket string) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{store: s, cache: cache, uploader: uploader, imageBucket: imageBucket}
}

// List returns all bundles, from cache when possible.
func (s *Service) List(ctx context.Context) ([]models.Bundle, error) {
	const op = "catalog.List"

	if cached, err := s.cache.GetList(ctx); err != nil {
		slog.WarnContext(ctx, "catalog cache read failed", "error", err)
	} else if cached != nil {
		return cached, nil
	}

	bundles, err := s.store.ListBundles(ctx)
	if err != nil {
		return nil, apperr.E(apperr.Internal, op, "", err)
	}
	if err := s.cache.SetList(ctx, bundles); err != nil {
		slog.WarnContext(ctx, "catalog cache write failed", "error", err)
	}
	return bundles, nil
}

// Get returns one bundle for public display.
func (s *Service) Get(ctx context.Context, id string) (*models.Bundle, error) {
	const op = "catalog.Get"

	if cached, err := s.cache.GetBundle(ctx, id); err != nil {
		slog.WarnContext(ctx, "catalog cache read failed", "bundle_id", id, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	b, err := s.store.GetBundle(ctx, id)
	if err != nil {
		return nil, notFoundOr(op, err)
	}
	if err := s.cache.SetBundle(ctx, *b); err != nil {
		slog.WarnContext(ctx, "catalog cache write failed", "bundle_id", id, "error", err)
	}
	return b, nil
}

// GetForAdmin reads straight from the store, asset URL included.
func (s *Service) GetForAdmin(ctx context.Context, id string) (*models.Bundle, error) {
	b, err := s.store.GetBundle(ctx, id)
	if err != nil {
		return nil, notFoundOr("catalog.GetForAdmin", err)
	}
	return b, nil
}

// Create adds a bundle.
func (s *Service) Create(ctx context.Context, in BundleInput) (*models.Bundle, error) {
	const op = "catalog.Create"

	if fields := s.validate(in); fields != nil {
		return nil, apperr.E(apperr.Validation, op, "Invalid bundle.", &ValidationError{Fields: fields})
	}
	b := &models.Bundle{}
	in.apply(b)
	if err := s.store.CreateBundle(ctx, b); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.E(apperr.Conflict, op, "Bundle already exists.", err)
		}
		return nil, apperr.E(apperr.Internal, op, "", err)
	}
	s.invalidate(ctx, b.ID)
	slog.InfoContext(ctx, "bundle created", "bundle_id", b.ID)
	return b, nil
}

// Update replaces the editable fields of a bundle. Existing orders and tokens
// keep the price and asset URL they were created with.
func (s *Service) Update(ctx context.Context, id string, in BundleInput) (*models.Bundle, error) {
	const op = "catalog.Update"

	if fields := s.validate(in); fields != nil {
		return nil, apperr.E(apperr.Validation, op, "Invalid bundle.", &ValidationError{Fields: fields})
	}
	b, err := s.store.GetBundle(ctx, id)
	if err != nil {
		return nil, notFoundOr(op, err)
	}
	in.apply(b)
	if err := s.store.UpdateBundle(ctx, b); err != nil {
		return nil, notFoundOr(op, err)
	}
	s.invalidate(ctx, id)
	slog.InfoContext(ctx, "bundle updated", "bundle_id", id)
	return b, nil
}

func (s *Service) validate(in BundleInput) map[string]string {
	fields := in.Validate()
	if s.WholeUnitPrices && !in.Price.IsInteger() {
		if fields == nil {
			fields = map[string]string{}
		}
		if _, ok := fields["price"]; !ok {
			fields["price"] = "price must be a whole amount for the configured payment provider"
		}
	}
	return fields
}

// Delete removes a bundle.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteBundle(ctx, id); err != nil {
		return notFoundOr("catalog.Delete", err)
	}
	s.invalidate(ctx, id)
	slog.InfoContext(ctx, "bundle deleted", "bundle_id", id)
	return nil
}

// AddImage uploads a preview image and appends it to the bundle.
func (s *Service) AddImage(ctx context.Context, id, filename, contentType string, data io.Reader) (*models.Bundle, error) {
	const op = "catalog.AddImage"

	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.E(apperr.Validation, op, "Only image uploads are accepted.", nil)
	}
	if _, err := s.store.GetBundle(ctx, id); err != nil {
		return nil, notFoundOr(op, err)
	}

	url, err := s.uploader.UploadImage(ctx, s.imageBucket, id, filename, contentType, data)
	if err != nil {
		slog.ErrorContext(ctx, "image upload failed", "bundle_id", id, "error", err)
		return nil, apperr.E(apperr.Upstream, op, "Image upload failed.", err)
	}
	if err := s.store.AppendBundleImage(ctx, id, url); err != nil {
		return nil, notFoundOr(op, err)
	}
	s.invalidate(ctx, id)
	return s.GetForAdmin(ctx, id)
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		slog.WarnContext(ctx, "catalog cache invalidation failed", "bundle_id", id, "error", err)
	}
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.E(apperr.NotFound, op, "Bundle not found.", err)
	}
	return apperr.E(apperr.Internal, op, "", err)
}
