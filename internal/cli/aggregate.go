package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ratebench/internal/app"
)

var aggregateDryRun bool

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Recompute daily price statistics for every route",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Aggregate(cmd.Context(), aggregateDryRun)
	},
}

var (
	savingsUser   string
	savingsAsOf   string
	savingsJSON   bool
	savingsNotify bool
)

var savingsCmd = &cobra.Command{
	Use:   "savings",
	Short: "Compare a user's rates with the market on a given day",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseDay("as-of", savingsAsOf)
		if err != nil {
			return err
		}
		if savingsNotify && asOf == nil {
			return fmt.Errorf("--notify requires --as-of")
		}

		return getApp().Savings(cmd.Context(), app.SavingsOptions{
			UserEmail: savingsUser,
			AsOf:      asOf,
			JSON:      savingsJSON,
			Notify:    savingsNotify,
		})
	},
}

func init() {
	aggregateCmd.Flags().BoolVar(&aggregateDryRun, "dry-run", false, "Print aggregates without storing them")

	savingsCmd.Flags().StringVar(&savingsUser, "user", "", "Email of the user to compare")
	savingsCmd.Flags().StringVar(&savingsAsOf, "as-of", "", "Comparison day (YYYY-MM-DD); without it nothing matches")
	savingsCmd.Flags().BoolVar(&savingsJSON, "json", false, "Print records as JSON")
	savingsCmd.Flags().BoolVar(&savingsNotify, "notify", false, "Send a digest through the configured alert channel")
	_ = savingsCmd.MarkFlagRequired("user")
}
