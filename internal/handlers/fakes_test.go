package handlers

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/models"
	"storefront/internal/store"
)

// fakeStore backs every handler with in-memory maps.
type fakeStore struct {
	mu       sync.Mutex
	bundles  map[string]models.Bundle
	profiles map[string]models.Profile
	orders   map[string]*models.Order
	tokens   map[string]*models.DownloadToken // by token string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bundles:  map[string]models.Bundle{},
		profiles: map[string]models.Profile{},
		orders:   map[string]*models.Order{},
		tokens:   map[string]*models.DownloadToken{},
	}
}

func (f *fakeStore) GetBundle(_ context.Context, id string) (*models.Bundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bundles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (f *fakeStore) ListBundles(context.Context) ([]models.Bundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Bundle{}
	for _, b := range f.bundles {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeStore) CreateBundle(_ context.Context, b *models.Bundle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = uuid.NewString()
	f.bundles[b.ID] = *b
	return nil
}

func (f *fakeStore) UpdateBundle(_ context.Context, b *models.Bundle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bundles[b.ID]; !ok {
		return store.ErrNotFound
	}
	f.bundles[b.ID] = *b
	return nil
}

func (f *fakeStore) DeleteBundle(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bundles[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.bundles, id)
	return nil
}

func (f *fakeStore) AppendBundleImage(_ context.Context, id, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bundles[id]
	if !ok {
		return store.ErrNotFound
	}
	b.ImageURLs = append(b.ImageURLs, url)
	b.ImageCount++
	f.bundles[id] = b
	return nil
}

func (f *fakeStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (f *fakeStore) GetProfileByEmail(_ context.Context, email string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Email == email {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) CreateProfile(_ context.Context, p models.Profile) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.profiles[p.ID]; ok {
		return &existing, nil
	}
	for _, other := range f.profiles {
		if other.Email == p.Email {
			return nil, store.ErrDuplicate
		}
	}
	f.profiles[p.ID] = p
	return &p, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = uuid.NewString()
	o.Status = models.OrderCreated
	cp := *o
	f.orders[o.ProviderOrderID] = &cp
	return nil
}

func (f *fakeStore) GetOrderByProviderID(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) MarkPaidAndIssueToken(_ context.Context, upd store.PaymentUpdate, token string, expiresAt *time.Time) (*models.DownloadToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[upd.ProviderOrderID]
	if !ok || o.Status != models.OrderCreated {
		return nil, store.ErrStatusMismatch
	}
	o.Status = models.OrderPaid
	pid := upd.ProviderPaymentID
	o.ProviderPaymentID = &pid
	assetURL := o.AssetURL
	if assetURL == "" {
		assetURL = f.bundles[o.BundleID].AssetURL
	}
	tok := &models.DownloadToken{
		ID: uuid.NewString(), Token: token, OrderID: o.ID, BundleID: o.BundleID,
		UserID: o.UserID, AssetURL: assetURL, Email: o.Email, ExpiresAt: expiresAt,
	}
	f.tokens[token] = tok
	cp := *tok
	return &cp, nil
}

func (f *fakeStore) GetTokenByOrderID(_ context.Context, orderID string) (*models.DownloadToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.OrderID == orderID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetToken(_ context.Context, token string) (*models.DownloadToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) RecordAccess(_ context.Context, id string, at time.Time) (*models.DownloadToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.ID == id && !t.Expired(at) {
			t.AccessCount++
			t.LastAccessAt = &at
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListOrdersByUser(_ context.Context, userID string) ([]models.OrderWithToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.OrderWithToken{}
	for _, o := range f.orders {
		if o.UserID == nil || *o.UserID != userID {
			continue
		}
		row := models.OrderWithToken{Order: *o, BundleTitle: f.bundles[o.BundleID].Title}
		for _, t := range f.tokens {
			if t.OrderID == o.ID {
				tok := t.Token
				row.Token = &tok
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeStore) Stats(context.Context) (models.SalesStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s models.SalesStats
	for _, o := range f.orders {
		if o.Status == models.OrderPaid {
			s.PaidOrders++
			s.Revenue = s.Revenue.Add(o.Amount)
		}
	}
	for _, t := range f.tokens {
		s.TotalDownloads += t.AccessCount
	}
	return s, nil
}

type fakeUploader struct{}

func (fakeUploader) UploadImage(_ context.Context, bucket, dir, filename, _ string, data io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, data)
	return "https://cdn.test/" + bucket + "/" + dir + "/" + filename, nil
}
