package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := New(sqlx.NewDb(db, "pgx"))
	s.nowFunc = func() time.Time { return fixedNow }
	return s, mock
}

var orderCols = []string{"id", "user_id", "bundle_id", "provider_order_id", "provider_payment_id",
	"provider_signature", "amount", "currency", "asset_url", "status", "email", "created_at", "updated_at"}

var tokenCols = []string{"id", "token", "order_id", "bundle_id", "user_id", "asset_url", "email",
	"expires_at", "access_count", "last_access_at", "created_at"}

func TestGetBundle(t *testing.T) {
	s, mock := newMockStore(t)

	cols := []string{"id", "title", "description", "image_urls", "price", "image_count", "asset_url",
		"category", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM bundles WHERE id = $1")).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"b1", "Wallpapers", nil, []byte(`["https://img/1.png","https://img/2.png"]`), "499.00", 2,
			"https://x/doc", nil, fixedNow, fixedNow))

	b, err := s.GetBundle(context.Background(), "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Price.Equal(decimal.NewFromInt(499)) {
		t.Fatalf("expected price 499, got %s", b.Price)
	}
	if b.PreviewURL() != "https://img/1.png" || len(b.ImageURLs) != 2 {
		t.Fatalf("unexpected images %v", b.ImageURLs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetBundle_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM bundles WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetBundle(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateOrder_ForcesCreatedStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "b1", "order_rcpt", sqlmock.AnyArg(), "INR", "https://x/doc",
			models.OrderCreated, "u1@example.com", fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	uid := "u1"
	o := &models.Order{
		UserID:          &uid,
		BundleID:        "b1",
		ProviderOrderID: "order_rcpt",
		Amount:          decimal.NewFromInt(499),
		Currency:        "INR",
		AssetURL:        "https://x/doc",
		Status:          models.OrderPaid,
		Email:           "u1@example.com",
	}
	if err := s.CreateOrder(context.Background(), o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != models.OrderCreated || o.ID == "" {
		t.Fatalf("expected created order with id, got %+v", o)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkPaidAndIssueToken_Success(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders")).
		WithArgs("order_rcpt", "pay_1", "sig", fixedNow).
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(
			"o1", "u1", "b1", "order_rcpt", "pay_1", "sig", "499.00", "INR", "https://x/doc", "paid", "u1@example.com", fixedNow, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO download_tokens")).
		WithArgs(sqlmock.AnyArg(), "tok", "o1", "b1", "u1", "https://x/doc", "u1@example.com", nil, fixedNow).
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow(
			"t1", "tok", "o1", "b1", "u1", "https://x/doc", "u1@example.com", nil, 0, nil, fixedNow))
	mock.ExpectCommit()

	tok, err := s.MarkPaidAndIssueToken(context.Background(), PaymentUpdate{
		ProviderOrderID:   "order_rcpt",
		ProviderPaymentID: "pay_1",
		ProviderSignature: "sig",
	}, "tok", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AssetURL != "https://x/doc" || tok.OrderID != "o1" || tok.AccessCount != 0 || tok.ExpiresAt != nil {
		t.Fatalf("unexpected token %+v", tok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkPaidAndIssueToken_NotCreated(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders")).
		WillReturnRows(sqlmock.NewRows(orderCols))
	mock.ExpectRollback()

	_, err := s.MarkPaidAndIssueToken(context.Background(), PaymentUpdate{ProviderOrderID: "order_rcpt"}, "tok", nil)
	if !errors.Is(err, ErrStatusMismatch) {
		t.Fatalf("expected ErrStatusMismatch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkPaidAndIssueToken_FallsBackToBundleAsset(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders")).
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(
			"o1", "u1", "b1", "order_rcpt", "pay_1", "sig", "499.00", "INR", "", "paid", "u1@example.com", fixedNow, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT asset_url FROM bundles WHERE id = $1")).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"asset_url"}).AddRow("https://x/current"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO download_tokens")).
		WithArgs(sqlmock.AnyArg(), "tok", "o1", "b1", "u1", "https://x/current", "u1@example.com", nil, fixedNow).
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow(
			"t1", "tok", "o1", "b1", "u1", "https://x/current", "u1@example.com", nil, 0, nil, fixedNow))
	mock.ExpectCommit()

	tok, err := s.MarkPaidAndIssueToken(context.Background(), PaymentUpdate{ProviderOrderID: "order_rcpt"}, "tok", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AssetURL != "https://x/current" {
		t.Fatalf("unexpected asset %q", tok.AssetURL)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkPaidAndIssueToken_MissingAssetKeepsPayment(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders")).
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(
			"o1", nil, "b1", "order_rcpt", "pay_1", "sig", "499.00", "INR", "", "paid", "g@example.com", fixedNow, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT asset_url FROM bundles")).
		WillReturnRows(sqlmock.NewRows([]string{"asset_url"}))
	mock.ExpectCommit()

	_, err := s.MarkPaidAndIssueToken(context.Background(), PaymentUpdate{ProviderOrderID: "order_rcpt"}, "tok", nil)
	if !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("expected ErrAssetUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRecordAccess_ExpiredOrMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE download_tokens")).
		WithArgs("t1", fixedNow).
		WillReturnRows(sqlmock.NewRows(tokenCols))

	_, err := s.RecordAccess(context.Background(), "t1", fixedNow)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFailAbandonedOrders(t *testing.T) {
	s, mock := newMockStore(t)

	cutoff := fixedNow.Add(-24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = 'failed'")).
		WithArgs(cutoff, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.FailAbandonedOrders(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
}

func TestPrefixed(t *testing.T) {
	got := prefixed("o", "id, user_id,\n\tstatus")
	if got != "o.id, o.user_id, o.status" {
		t.Fatalf("unexpected %q", got)
	}
}
