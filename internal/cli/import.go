package cli

import (
	"github.com/spf13/cobra"

	"ratebench/internal/app"
)

var (
	importAggregate bool
	importDryRun    bool
	importUserEmail string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import market data or user rates from .xlsx/.csv files",
}

var importMarketCmd = &cobra.Command{
	Use:   "market <file>",
	Short: "Import market price observations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		aggregate := a.Config.Ingest.AggregateOnImport
		if cmd.Flags().Changed("aggregate") {
			aggregate = importAggregate
		}

		return a.ImportMarket(cmd.Context(), app.ImportOptions{
			Path:      args[0],
			Aggregate: aggregate,
			DryRun:    importDryRun,
		})
	},
}

var importRatesCmd = &cobra.Command{
	Use:   "rates <file>",
	Short: "Import a user's contracted rates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ImportUserRates(cmd.Context(), app.ImportOptions{
			Path:      args[0],
			UserEmail: importUserEmail,
			DryRun:    importDryRun,
		})
	},
}

func init() {
	importCmd.PersistentFlags().BoolVar(&importDryRun, "dry-run", false, "Validate the file without storing anything")

	importMarketCmd.Flags().BoolVar(&importAggregate, "aggregate", true, "Re-aggregate after import (defaults to ingest.aggregate_on_import)")
	importRatesCmd.Flags().StringVar(&importUserEmail, "user", "", "Email of the user owning the rates")
	_ = importRatesCmd.MarkFlagRequired("user")

	importCmd.AddCommand(importMarketCmd)
	importCmd.AddCommand(importRatesCmd)
}
