package main

import (
	"github.com/spf13/cobra"

	"github.com/reputexa/reputexa/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Classify customer reviews",
}

var (
	reviewText          string
	reviewRating        int
	reviewEstablishment string
	reviewCity          string
	reviewIndustry      string
)

var reviewProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Classify a new review and store it with its reply or flag",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireClassifier(); err != nil {
			return err
		}
		if err := cfg.Validate("review"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := newReviewPipeline(cfg, st)
		if err != nil {
			return err
		}

		res, err := p.Ingest(ctx, review.IngestRequest{
			ReviewText:        reviewText,
			Rating:            reviewRating,
			EstablishmentName: reviewEstablishment,
			City:              reviewCity,
			Industry:          reviewIndustry,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var reviewGenerateCmd = &cobra.Command{
	Use:   "generate <id>",
	Short: "Classify a stored review that has no response yet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireClassifier(); err != nil {
			return err
		}
		if err := cfg.Validate("review"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := newReviewPipeline(cfg, st)
		if err != nil {
			return err
		}

		res, err := p.ClassifyExisting(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	f := reviewProcessCmd.Flags()
	f.StringVar(&reviewText, "text", "", "review text")
	f.IntVar(&reviewRating, "rating", 0, "star rating (1-5)")
	f.StringVar(&reviewEstablishment, "establishment", "", "establishment name")
	f.StringVar(&reviewCity, "city", "", "establishment city")
	f.StringVar(&reviewIndustry, "industry", "", "business activity (optional)")

	reviewCmd.AddCommand(reviewProcessCmd, reviewGenerateCmd)
	rootCmd.AddCommand(reviewCmd)
}
