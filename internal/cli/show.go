package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ratebench/internal/app"
)

var (
	showLimit       int
	showOrigin      string
	showDestination string
	showDate        string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display stored aggregates",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		date, err := parseDay("date", showDate)
		if err != nil {
			return err
		}

		opts := app.ShowOptions{
			Origin:      showOrigin,
			Destination: showDestination,
			Date:        date,
			Limit:       showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of aggregates to display")
	showCmd.Flags().StringVar(&showOrigin, "origin", "", "Only show this origin")
	showCmd.Flags().StringVar(&showDestination, "destination", "", "Only show this destination")
	showCmd.Flags().StringVar(&showDate, "date", "", "Only show this day (YYYY-MM-DD)")
}
