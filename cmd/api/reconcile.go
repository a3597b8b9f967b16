package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storefront/internal/checkout"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair paid orders without a download token and expire abandoned orders",
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

			rep, err := checkout.NewReconciler(st, cfg.AbandonedOrderTTL).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tokens issued:    %d\ntokens pending:   %d\norders abandoned: %d\n",
				rep.TokensIssued, rep.TokensPending, rep.OrdersAbandoned)
			if rep.TokensPending > 0 {
				return fmt.Errorf("%d paid orders still have no download token", rep.TokensPending)
			}
			return nil
		},
	}
}
