package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"ratebench/internal/pricing"
	"ratebench/internal/service"
	"ratebench/internal/storage"
)

// Aggregate recomputes every group aggregate once.
func (a *App) Aggregate(ctx context.Context, dryRun bool) error {
	return a.withService(ctx, func(svc *service.Service, _ *storage.Store) error {
		res, err := svc.RunAggregation(ctx, dryRun)
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Fprintln(os.Stdout, "aggregation skipped: another run holds the lock")
			return nil
		}
		if dryRun {
			return printAggregates(res.Aggregates)
		}
		fmt.Fprintf(os.Stdout, "aggregated %d observations into %d groups\n", res.Observations, res.Groups)
		return nil
	})
}

// Savings prints the user's potential savings on the as-of date.
func (a *App) Savings(ctx context.Context, opts SavingsOptions) error {
	return a.withService(ctx, func(svc *service.Service, _ *storage.Store) error {
		records, err := svc.Savings(ctx, opts.UserEmail, opts.AsOf)
		if err != nil {
			return err
		}

		if opts.Notify && opts.AsOf != nil {
			if err := svc.SendDigest(ctx, opts.UserEmail, *opts.AsOf, records); err != nil {
				return fmt.Errorf("send digest: %w", err)
			}
		}

		if opts.JSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		return printSavings(records)
	})
}

func printSavings(records []pricing.SavingsRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no matching rates found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tOrigin\tDestination\tYour price\tVolume\tMedian\tSavings@Min\tSavings@P10\tSavings@Median\tSavings@P90\tSavings@Max")
	for _, r := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Date.Format(pricing.DateLayout),
			sanitizeInline(r.Origin),
			sanitizeInline(r.Destination),
			formatDecimal(r.UserPrice, 2),
			r.Volume.String(),
			formatDecimal(r.MedianPrice, 2),
			formatDecimal(r.PotentialSavingsMin, 2),
			formatDecimal(r.PotentialSavingsP10, 2),
			formatDecimal(r.PotentialSavingsMedian, 2),
			formatDecimal(r.PotentialSavingsP90, 2),
			formatDecimal(r.PotentialSavingsMax, 2),
		)
	}

	totals := pricing.Totals(records)
	fmt.Fprintf(writer, "Total (%d)\t\t\t\t\t\t%s\t%s\t%s\t%s\t%s\n",
		totals.Records,
		formatDecimal(totals.Min, 2),
		formatDecimal(totals.P10, 2),
		formatDecimal(totals.Median, 2),
		formatDecimal(totals.P90, 2),
		formatDecimal(totals.Max, 2),
	)
	return writer.Flush()
}
