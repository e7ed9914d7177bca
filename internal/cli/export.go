package cli

import (
	"github.com/spf13/cobra"

	"ratebench/internal/app"
)

var (
	exportFrom        string
	exportTo          string
	exportOrigin      string
	exportDestination string
	exportPNGPath     string
	exportCSVPath     string
	exportMaxPoints   int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export aggregates as CSV and/or a PNG chart of one route",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Origin:      exportOrigin,
			Destination: exportDestination,
			PNGPath:     exportPNGPath,
			CSVPath:     exportCSVPath,
			MaxPoints:   exportMaxPoints,
		}

		var err error
		if opts.From, err = parseDay("from", exportFrom); err != nil {
			return err
		}
		if opts.To, err = parseDay("to", exportTo); err != nil {
			return err
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "First day (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Last day (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportOrigin, "origin", "", "Route origin")
	exportCmd.Flags().StringVar(&exportDestination, "destination", "", "Route destination")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart (requires --origin and --destination)")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
