// Package assets talks to Supabase Storage: it signs private asset URLs for
// downloads and uploads bundle preview images.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

// Scheme marks an asset stored in a private bucket.
const Scheme = "storage://"

// ErrNotConfigured is returned for storage URLs when no storage client is set up.
var ErrNotConfigured = errors.New("assets: storage is not configured")

// objectStore is the part of the storage-go client we use.
type objectStore interface {
	CreateSignedUrl(bucketID, filePath string, expiresIn int) (storage_go.SignedUrlResponse, error)
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// Client resolves and uploads assets.
type Client struct {
	objects   objectStore
	signedTTL time.Duration
}

// New returns a client for the Supabase project at supabaseURL. An empty URL
// yields a client that only passes plain http(s) asset URLs through.
func New(supabaseURL, serviceKey string, signedTTL time.Duration) *Client {
	c := &Client{signedTTL: signedTTL}
	if supabaseURL != "" {
		c.objects = storage_go.NewClient(strings.TrimRight(supabaseURL, "/")+"/storage/v1", serviceKey, nil)
	}
	return c
}

// ParseStorageURL splits storage://bucket/path/to/file.
func ParseStorageURL(raw string) (bucket, filePath string, ok bool) {
	rest, found := strings.CutPrefix(raw, Scheme)
	if !found {
		return "", "", false
	}
	bucket, filePath, found = strings.Cut(rest, "/")
	if !found || bucket == "" || filePath == "" {
		return "", "", false
	}
	return bucket, filePath, true
}

// Resolve turns a cached asset URL into something a browser can fetch.
// Storage URLs become short-lived signed URLs; anything else is returned as is.
func (c *Client) Resolve(_ context.Context, assetURL string) (string, error) {
	if !strings.HasPrefix(assetURL, Scheme) {
		return assetURL, nil
	}
	bucket, filePath, ok := ParseStorageURL(assetURL)
	if !ok {
		return "", fmt.Errorf("assets: malformed storage url %q", assetURL)
	}
	if c.objects == nil {
		return "", ErrNotConfigured
	}

	ttl := int(c.signedTTL / time.Second)
	if ttl <= 0 {
		ttl = 60
	}
	resp, err := c.objects.CreateSignedUrl(bucket, filePath, ttl)
	if err != nil {
		return "", fmt.Errorf("assets: sign %s/%s: %w", bucket, filePath, err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("assets: empty signed url for %s/%s", bucket, filePath)
	}
	return resp.SignedURL, nil
}

// UploadImage stores an image under dir in a public bucket and returns its public URL.
func (c *Client) UploadImage(_ context.Context, bucket, dir, filename, contentType string, data io.Reader) (string, error) {
	if c.objects == nil {
		return "", ErrNotConfigured
	}
	objectPath := path.Join(dir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), path.Base(filename)))

	upsert := false
	opts := storage_go.FileOptions{ContentType: &contentType, Upsert: &upsert}
	if _, err := c.objects.UploadFile(bucket, objectPath, data, opts); err != nil {
		return "", fmt.Errorf("assets: upload %s/%s: %w", bucket, objectPath, err)
	}
	return c.objects.GetPublicUrl(bucket, objectPath).SignedURL, nil
}
