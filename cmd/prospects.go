package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reputexa/reputexa/internal/model"
	"github.com/reputexa/reputexa/internal/store"
)

var prospectsCmd = &cobra.Command{
	Use:   "prospects",
	Short: "Inspect stored prospects",
}

var (
	prospectsCity   string
	prospectsStatus string
	prospectsLimit  int
	prospectsJSON   bool
)

var prospectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prospects, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListProspects(ctx, store.ProspectFilter{
			City:   prospectsCity,
			Status: model.ProspectStatus(prospectsStatus),
			Limit:  prospectsLimit,
		})
		if err != nil {
			return err
		}

		if prospectsJSON {
			return printJSON(cmd.OutOrStdout(), list)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PLACE ID\tNAME\tCITY\tCOUNTRY\tRATING\tSTATUS")
		for _, p := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f\t%s\n",
				p.PlaceID, p.EstablishmentName, p.City, p.CountryCode, p.Rating, p.Status)
		}
		return tw.Flush()
	},
}

var prospectsShowCmd = &cobra.Command{
	Use:   "show <placeID>",
	Short: "Print one prospect as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := st.GetProspect(ctx, args[0])
		if err != nil {
			return err
		}
		if p == nil {
			return eris.Errorf("prospect %q not found", args[0])
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

func init() {
	f := prospectsListCmd.Flags()
	f.StringVar(&prospectsCity, "city", "", "filter by city")
	f.StringVar(&prospectsStatus, "status", "", "filter by status (TO_CONTACT, CONTACTED, CONVERTED, REJECTED)")
	f.IntVar(&prospectsLimit, "limit", 50, "maximum rows")
	f.BoolVar(&prospectsJSON, "json", false, "print JSON instead of a table")

	prospectsCmd.AddCommand(prospectsListCmd, prospectsShowCmd)
	rootCmd.AddCommand(prospectsCmd)
}
