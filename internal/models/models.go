package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// We use 'db' tags for sqlx to automatically map
// the database column names (snake_case) to our Go fields (CamelCase).

// Roles
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Order statuses. created is the only initial state; paid is terminal.
const (
	OrderCreated = "created"
	OrderPaid    = "paid"
	OrderFailed  = "failed"
)

// Profile represents an authenticated identity and its role.
type Profile struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	DisplayName  *string   `db:"display_name" json:"display_name,omitempty"`
	Role         string    `db:"role" json:"role"`
	PasswordHash *string   `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether the profile may manage the catalog.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Bundle is a purchasable digital product.
type Bundle struct {
	ID          string          `db:"id" json:"id"`
	Title       string          `db:"title" json:"title"`
	Description *string         `db:"description" json:"description,omitempty"`
	ImageURLs   StringList      `db:"image_urls" json:"image_urls"`
	Price       decimal.Decimal `db:"price" json:"price"`
	ImageCount  int             `db:"image_count" json:"image_count"`
	AssetURL    string          `db:"asset_url" json:"-"`
	Category    *string         `db:"category" json:"category,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// PreviewURL returns the canonical preview image, the first one.
func (b Bundle) PreviewURL() string {
	if len(b.ImageURLs) == 0 {
		return ""
	}
	return b.ImageURLs[0]
}

// Order is a purchase attempt.
type Order struct {
	ID                string          `db:"id" json:"id"`
	UserID            *string         `db:"user_id" json:"user_id,omitempty"`
	BundleID          string          `db:"bundle_id" json:"bundle_id"`
	ProviderOrderID   string          `db:"provider_order_id" json:"provider_order_id"`
	ProviderPaymentID *string         `db:"provider_payment_id" json:"provider_payment_id,omitempty"`
	ProviderSignature *string         `db:"provider_signature" json:"-"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Currency          string          `db:"currency" json:"currency"`
	AssetURL          string          `db:"asset_url" json:"-"`
	Status            string          `db:"status" json:"status"`
	Email             string          `db:"email" json:"email"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// DownloadToken grants repeated access to one paid order's asset.
type DownloadToken struct {
	ID           string     `db:"id" json:"id"`
	Token        string     `db:"token" json:"token"`
	OrderID      string     `db:"order_id" json:"order_id"`
	BundleID     string     `db:"bundle_id" json:"bundle_id"`
	UserID       *string    `db:"user_id" json:"user_id,omitempty"`
	AssetURL     string     `db:"asset_url" json:"-"`
	Email        string     `db:"email" json:"email"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	AccessCount  int        `db:"access_count" json:"access_count"`
	LastAccessAt *time.Time `db:"last_access_at" json:"last_access_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the token has an expiry at or before now.
func (t DownloadToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// OrderWithToken is a purchase history row.
type OrderWithToken struct {
	Order
	BundleTitle string  `db:"bundle_title" json:"bundle_title"`
	Token       *string `db:"token" json:"download_token,omitempty"`
}

// SalesStats aggregates paid orders for the admin dashboard.
type SalesStats struct {
	PaidOrders     int             `db:"paid_orders" json:"paid_orders"`
	Revenue        decimal.Decimal `db:"revenue" json:"revenue"`
	TotalDownloads int             `db:"total_downloads" json:"total_downloads"`
}

// StringList is stored as a JSONB array.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("models: unsupported StringList source")
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*l = out
	return nil
}
