package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/store"
)

var configDir string

func main() {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Digital goods storefront API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing config.env")
	root.AddCommand(serveCmd(), migrateCmd(), reconcileCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and installs the JSON logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return cfg, fmt.Errorf("cannot load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// openStore connects to Postgres. The caller closes the returned func.
func openStore(ctx context.Context, cfg config.Config) (*store.Store, func(), error) {
	if cfg.DSN == "" {
		return nil, nil, errors.New("DSN is required")
	}
	db, err := store.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	slog.Info("connected to database")
	return store.New(db), func() { _ = db.Close() }, nil
}
