package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("DSN", "postgres://localhost/store")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SIGNED_URL_TTL", "90s")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DSN != "postgres://localhost/store" {
		t.Fatalf("DSN not read from env: %q", cfg.DSN)
	}
	if cfg.SignedURLTTL != 90*time.Second {
		t.Fatalf("expected 90s, got %s", cfg.SignedURLTTL)
	}
	if cfg.Currency != "INR" || cfg.PaymentProvider != ProviderRazorpay {
		t.Fatalf("unexpected payment defaults: %q %q", cfg.Currency, cfg.PaymentProvider)
	}
	if cfg.AbandonedOrderTTL != 24*time.Hour {
		t.Fatalf("unexpected abandoned ttl %s", cfg.AbandonedOrderTTL)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	body := "DSN=postgres://file/db\nPAYMENT_PROVIDER=midtrans\nMIDTRANS_SERVER_KEY=sk\n"
	if err := os.WriteFile(filepath.Join(dir, "config.env"), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DSN != "postgres://file/db" || cfg.PaymentProvider != ProviderMidtrans {
		t.Fatalf("config file not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{AuthMode: AuthModeJWT, PaymentProvider: ProviderRazorpay}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	for _, want := range []string{"DSN", "JWT_SECRET", "RAZORPAY_KEY_ID"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in %q", want, err.Error())
		}
	}

	cfg = Config{
		DSN:               "postgres://x",
		AuthMode:          AuthModeJWT,
		JWTSecret:         "s",
		PaymentProvider:   ProviderRazorpay,
		RazorpayKeyID:     "rzp_test",
		RazorpayKeySecret: "secret",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := Config{CORSOrigins: "https://a.test, https://b.test,,"}
	got := cfg.AllowedOrigins()
	if len(got) != 2 || got[0] != "https://a.test" || got[1] != "https://b.test" {
		t.Fatalf("unexpected origins %v", got)
	}
}
