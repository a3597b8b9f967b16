package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, closeDB, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
			slog.Info("schema applied")
			return nil
		},
	}
}
