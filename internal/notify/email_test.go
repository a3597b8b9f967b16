package notify

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/checkout"
	"storefront/internal/models"
)

type fakeInvoker struct {
	name    string
	payload interface{}
	calls   int
	err     error
}

func (f *fakeInvoker) Invoke(name string, payload interface{}) (string, error) {
	f.calls++
	f.name, f.payload = name, payload
	return "ok", f.err
}

func paidEvent(email string) checkout.PaidEvent {
	return checkout.PaidEvent{
		Order:       models.Order{ID: "o1", Email: email},
		BundleTitle: "Icon pack",
		Token:       models.DownloadToken{Token: "tok123"},
	}
}

func TestMailer_OrderPaid(t *testing.T) {
	fn := &fakeInvoker{}
	m := &Mailer{fn: fn, function: "send-download-email", baseURL: "https://shop.test"}

	if err := m.OrderPaid(context.Background(), paidEvent("a@example.com")); err != nil {
		t.Fatalf("OrderPaid: %v", err)
	}
	if fn.name != "send-download-email" {
		t.Fatalf("unexpected function %q", fn.name)
	}
	msg, ok := fn.payload.(DownloadEmail)
	if !ok {
		t.Fatalf("unexpected payload %T", fn.payload)
	}
	want := DownloadEmail{To: "a@example.com", OrderID: "o1", BundleTitle: "Icon pack", DownloadURL: "https://shop.test/api/download/tok123"}
	if msg != want {
		t.Fatalf("got %+v, want %+v", msg, want)
	}
}

func TestMailer_SkipsWithoutEmail(t *testing.T) {
	fn := &fakeInvoker{}
	m := &Mailer{fn: fn, function: "f"}
	if err := m.OrderPaid(context.Background(), paidEvent("")); err != nil {
		t.Fatal(err)
	}
	if fn.calls != 0 {
		t.Fatal("no email expected")
	}
}

func TestMailer_PropagatesInvokeError(t *testing.T) {
	fn := &fakeInvoker{err: errors.New("502")}
	m := &Mailer{fn: fn, function: "f"}
	if err := m.OrderPaid(context.Background(), paidEvent("a@example.com")); err == nil {
		t.Fatal("expected error")
	}
}
