package main

import (
	"github.com/spf13/cobra"

	"github.com/reputexa/reputexa/internal/monitoring"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the dashboard figures",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st, cfg.Monitoring.MinutesPerReview).Collect(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return st.Close()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, migrateCmd)
}
