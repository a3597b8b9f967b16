package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the loaded configuration.
type Config struct {
	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`
	DSN           string `mapstructure:"DSN"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	CORSOrigins   string `mapstructure:"CORS_ORIGINS"`

	AuthMode  string `mapstructure:"AUTH_MODE"`
	JWTSecret string `mapstructure:"JWT_SECRET"`

	SupabaseURL        string        `mapstructure:"SUPABASE_URL"`
	SupabaseAnonKey    string        `mapstructure:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string        `mapstructure:"SUPABASE_SERVICE_KEY"`
	ImageBucket        string        `mapstructure:"IMAGE_BUCKET"`
	SignedURLTTL       time.Duration `mapstructure:"SIGNED_URL_TTL"`
	EmailFunction      string        `mapstructure:"EMAIL_FUNCTION"`

	PaymentProvider    string `mapstructure:"PAYMENT_PROVIDER"`
	Currency           string `mapstructure:"CURRENCY"`
	RazorpayKeyID      string `mapstructure:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret  string `mapstructure:"RAZORPAY_KEY_SECRET"`
	RazorpayBaseURL    string `mapstructure:"RAZORPAY_BASE_URL"`
	MidtransServerKey  string `mapstructure:"MIDTRANS_SERVER_KEY"`
	MidtransProduction bool   `mapstructure:"MIDTRANS_PRODUCTION"`

	RedisURL        string        `mapstructure:"REDIS_URL"`
	CatalogCacheTTL time.Duration `mapstructure:"CATALOG_CACHE_TTL"`

	AbandonedOrderTTL time.Duration `mapstructure:"ABANDONED_ORDER_TTL"`
	ReconcileInterval time.Duration `mapstructure:"RECONCILE_INTERVAL"`
}

// Auth modes
const (
	AuthModeJWT    = "jwt"
	AuthModeGoTrue = "gotrue"
)

// Payment providers
const (
	ProviderRazorpay = "razorpay"
	ProviderMidtrans = "midtrans"
)

var keys = []string{
	"HTTP_ADDR", "PUBLIC_BASE_URL", "DSN", "LOG_LEVEL", "CORS_ORIGINS",
	"AUTH_MODE", "JWT_SECRET",
	"SUPABASE_URL", "SUPABASE_ANON_KEY", "SUPABASE_SERVICE_KEY", "IMAGE_BUCKET",
	"SIGNED_URL_TTL", "EMAIL_FUNCTION",
	"PAYMENT_PROVIDER", "CURRENCY", "RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET", "RAZORPAY_BASE_URL",
	"MIDTRANS_SERVER_KEY", "MIDTRANS_PRODUCTION",
	"REDIS_URL", "CATALOG_CACHE_TTL", "ABANDONED_ORDER_TTL", "RECONCILE_INTERVAL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("AUTH_MODE", AuthModeJWT)
	v.SetDefault("IMAGE_BUCKET", "bundle-images")
	v.SetDefault("SIGNED_URL_TTL", 5*time.Minute)
	v.SetDefault("EMAIL_FUNCTION", "send-download-email")
	v.SetDefault("PAYMENT_PROVIDER", ProviderRazorpay)
	v.SetDefault("CURRENCY", "INR")
	v.SetDefault("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1")
	v.SetDefault("CATALOG_CACHE_TTL", 5*time.Minute)
	v.SetDefault("ABANDONED_ORDER_TTL", 24*time.Hour)
	v.SetDefault("RECONCILE_INTERVAL", 10*time.Minute)
}

// Load reads config.env from path (if present) and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	// AutomaticEnv only answers Get; Unmarshal needs the keys bound.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	var problems []string
	if c.DSN == "" {
		problems = append(problems, "DSN is required")
	}
	switch c.AuthMode {
	case AuthModeJWT:
		if c.JWTSecret == "" {
			problems = append(problems, "JWT_SECRET is required in jwt auth mode")
		}
	case AuthModeGoTrue:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			problems = append(problems, "SUPABASE_URL and SUPABASE_ANON_KEY are required in gotrue auth mode")
		}
	default:
		problems = append(problems, "AUTH_MODE must be jwt or gotrue")
	}
	switch c.PaymentProvider {
	case ProviderRazorpay:
		if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
			problems = append(problems, "RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required")
		}
	case ProviderMidtrans:
		if c.MidtransServerKey == "" {
			problems = append(problems, "MIDTRANS_SERVER_KEY is required")
		}
	default:
		problems = append(problems, "PAYMENT_PROVIDER must be razorpay or midtrans")
	}
	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
