package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reputexa/reputexa/internal/sniper"
)

var sniperCmd = &cobra.Command{
	Use:   "sniper [city] [category] [countryCode]",
	Short: "Find businesses in the target rating band and store a pitch for each",
	Args:  cobra.MaximumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireSniper(); err != nil {
			return err
		}
		if err := cfg.Validate("sniper"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		s, err := newSniper(cfg, st, nil)
		if err != nil {
			return err
		}

		params := sniper.FromArgs(args)
		zap.L().Info("sniper: starting",
			zap.String("city", params.City),
			zap.String("category", params.Category),
			zap.String("country", params.CountryCode),
		)

		res, err := s.Run(ctx, params)
		if res != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%d prospects saved (%d created, %d updated) from %d candidates\n",
				res.Saved(), res.Created, res.Updated, res.Candidates)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(sniperCmd)
}
