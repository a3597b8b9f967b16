package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/models"
	"storefront/internal/store"
)

// memStore mimics the Postgres store's conditional semantics in memory.
type memStore struct {
	mu       sync.Mutex
	bundles  map[string]models.Bundle
	profiles map[string]models.Profile
	orders   map[string]*models.Order         // by provider order id
	tokens   map[string]*models.DownloadToken // by order id

	createProfileErr error
	markPaidErr      error
	profileCreates   int
}

func newMemStore() *memStore {
	return &memStore{
		bundles:  map[string]models.Bundle{},
		profiles: map[string]models.Profile{},
		orders:   map[string]*models.Order{},
		tokens:   map[string]*models.DownloadToken{},
	}
}

func (m *memStore) GetBundle(_ context.Context, id string) (*models.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bundles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (m *memStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) CreateProfile(_ context.Context, p models.Profile) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createProfileErr != nil {
		return nil, m.createProfileErr
	}
	m.profileCreates++
	if existing, ok := m.profiles[p.ID]; ok {
		return &existing, nil
	}
	m.profiles[p.ID] = p
	return &p, nil
}

func (m *memStore) CreateOrder(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ProviderOrderID]; ok {
		return store.ErrDuplicate
	}
	o.ID = uuid.NewString()
	o.Status = models.OrderCreated
	cp := *o
	m.orders[o.ProviderOrderID] = &cp
	return nil
}

func (m *memStore) GetOrderByProviderID(_ context.Context, providerOrderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[providerOrderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) MarkPaidAndIssueToken(_ context.Context, upd store.PaymentUpdate, token string, expiresAt *time.Time) (*models.DownloadToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[upd.ProviderOrderID]
	if !ok || o.Status != models.OrderCreated {
		return nil, store.ErrStatusMismatch
	}
	if m.markPaidErr != nil {
		return nil, m.markPaidErr
	}
	pid, sig := upd.ProviderPaymentID, upd.ProviderSignature
	o.ProviderPaymentID = &pid
	o.ProviderSignature = &sig
	assetURL := m.assetURLLocked(*o)
	if assetURL == "" {
		o.Status = models.OrderPaid
		return nil, store.ErrAssetUnavailable
	}
	tok, err := m.insertTokenLocked(*o, assetURL, token, expiresAt)
	if err != nil {
		o.ProviderPaymentID, o.ProviderSignature = nil, nil
		return nil, err
	}
	o.Status = models.OrderPaid
	return tok, nil
}

func (m *memStore) assetURLLocked(o models.Order) string {
	if o.AssetURL != "" {
		return o.AssetURL
	}
	return m.bundles[o.BundleID].AssetURL
}

func (m *memStore) insertTokenLocked(o models.Order, assetURL, token string, expiresAt *time.Time) (*models.DownloadToken, error) {
	if _, ok := m.tokens[o.ID]; ok {
		return nil, store.ErrDuplicate
	}
	for _, t := range m.tokens {
		if t.Token == token {
			return nil, store.ErrDuplicate
		}
	}
	tok := &models.DownloadToken{
		ID:        uuid.NewString(),
		Token:     token,
		OrderID:   o.ID,
		BundleID:  o.BundleID,
		UserID:    o.UserID,
		AssetURL:  assetURL,
		Email:     o.Email,
		ExpiresAt: expiresAt,
	}
	m.tokens[o.ID] = tok
	cp := *tok
	return &cp, nil
}

func (m *memStore) GetTokenByOrderID(_ context.Context, orderID string) (*models.DownloadToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) PaidOrdersWithoutToken(_ context.Context, limit int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.Status != models.OrderPaid {
			continue
		}
		if _, ok := m.tokens[o.ID]; ok {
			continue
		}
		out = append(out, *o)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) IssueTokenForPaidOrder(_ context.Context, o models.Order, token string, expiresAt *time.Time) (*models.DownloadToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	assetURL := m.assetURLLocked(o)
	if assetURL == "" {
		return nil, store.ErrAssetUnavailable
	}
	return m.insertTokenLocked(o, assetURL, token, expiresAt)
}

func (m *memStore) FailAbandonedOrders(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, o := range m.orders {
		if o.Status == models.OrderCreated && o.CreatedAt.Before(cutoff) {
			o.Status = models.OrderFailed
			n++
		}
	}
	return n, nil
}

func (m *memStore) tokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}
