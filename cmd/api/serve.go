package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"storefront/internal/assets"
	"storefront/internal/auth"
	"storefront/internal/catalog"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/download"
	"storefront/internal/handlers"
	"storefront/internal/notify"
	"storefront/internal/payment"
	ws "storefront/internal/websocket"
)

const sessionTTL = 7 * 24 * time.Hour

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, migrate bool) error {
	slog.Info("starting storefront server", "addr", cfg.HTTPAddr, "payment_provider", cfg.PaymentProvider, "auth_mode", cfg.AuthMode)

	st, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()
	if migrate {
		if err := st.Migrate(ctx); err != nil {
			return err
		}
	}

	gateway, publicKey := newGateway(cfg)
	hub := ws.NewHub()

	listeners := []checkout.Listener{hub}
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		listeners = append(listeners, notify.NewMailer(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.EmailFunction, cfg.PublicBaseURL))
	}

	objects := assets.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SignedURLTTL)
	cache, closeCache, err := newCatalogCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	bundles := catalog.NewService(st, cache, objects, cfg.ImageBucket)
	bundles.WholeUnitPrices = cfg.PaymentProvider == config.ProviderMidtrans

	routes := handlers.Routes{
		Profiles:    st,
		Checkout:    handlers.NewCheckoutHandler(checkout.NewService(st, gateway, cfg.Currency, listeners...), publicKey),
		Download:    handlers.NewDownloadHandler(download.NewController(st, objects)),
		Catalog:     handlers.NewCatalogHandler(bundles),
		Orders:      handlers.NewOrdersHandler(st),
		Live:        handlers.NewWebSocketHandler(hub, cfg.AllowedOrigins()),
		CORSOrigins: cfg.AllowedOrigins(),
		Ping:        st.Ping,
	}
	switch cfg.AuthMode {
	case config.AuthModeGoTrue:
		routes.Resolver = auth.NewGoTrueResolver(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	default:
		jwtResolver := auth.NewJWTResolver(cfg.JWTSecret, sessionTTL)
		routes.Resolver = jwtResolver
		routes.Auth = handlers.NewAuthHandler(st, jwtResolver)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.NewRouter(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return checkout.NewReconciler(st, cfg.AbandonedOrderTTL).Loop(ctx, cfg.ReconcileInterval)
	})
	g.Go(func() error {
		slog.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newGateway(cfg config.Config) (payment.Gateway, string) {
	if cfg.PaymentProvider == config.ProviderMidtrans {
		return payment.NewMidtrans(cfg.MidtransServerKey, cfg.MidtransProduction), ""
	}
	rp := payment.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayBaseURL)
	return rp, rp.KeyID()
}

func newCatalogCache(ctx context.Context, cfg config.Config) (catalog.Cache, func(), error) {
	if cfg.RedisURL == "" {
		return catalog.NopCache{}, func() {}, nil
	}
	client, err := catalog.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("catalog cache enabled")
	return catalog.NewRedisCache(client, cfg.CatalogCacheTTL), func() { _ = client.Close() }, nil
}

