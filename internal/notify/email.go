// Package notify sends transactional email through a Supabase Edge Function.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	functions "github.com/supabase-community/functions-go"

	"storefront/internal/checkout"
)

type invoker interface {
	Invoke(functionName string, payload interface{}) (string, error)
}

// DownloadEmail is the payload the edge function renders.
type DownloadEmail struct {
	To          string `json:"to"`
	OrderID     string `json:"orderId"`
	BundleTitle string `json:"bundleTitle"`
	DownloadURL string `json:"downloadUrl"`
}

// Mailer emails download links once an order is paid.
type Mailer struct {
	fn       invoker
	function string
	baseURL  string
}

// NewMailer returns a mailer invoking function on the project at supabaseURL.
// publicBaseURL is the storefront origin used to build download links.
func NewMailer(supabaseURL, serviceKey, function, publicBaseURL string) *Mailer {
	client := functions.NewClient(strings.TrimRight(supabaseURL, "/")+"/functions/v1", serviceKey, nil)
	return &Mailer{fn: client, function: function, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

// DownloadURL is the customer-facing link for a token.
func (m *Mailer) DownloadURL(token string) string {
	return m.baseURL + "/api/download/" + token
}

// OrderPaid implements checkout.Listener.
func (m *Mailer) OrderPaid(ctx context.Context, ev checkout.PaidEvent) error {
	if ev.Order.Email == "" {
		slog.WarnContext(ctx, "paid order has no email, skipping download email", "order_id", ev.Order.ID)
		return nil
	}
	msg := DownloadEmail{
		To:          ev.Order.Email,
		OrderID:     ev.Order.ID,
		BundleTitle: ev.BundleTitle,
		DownloadURL: m.DownloadURL(ev.Token.Token),
	}
	if _, err := m.fn.Invoke(m.function, msg); err != nil {
		return fmt.Errorf("invoke %s: %w", m.function, err)
	}
	slog.InfoContext(ctx, "download email sent", "order_id", ev.Order.ID)
	return nil
}
