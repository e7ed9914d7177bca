package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"ratebench/internal/pricing"
	"ratebench/internal/storage"
)

// Show prints stored aggregates ordered by date and route.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	filter := storage.AggregateFilter{
		Origin:      opts.Origin,
		Destination: opts.Destination,
		From:        opts.Date,
		To:          opts.Date,
		Limit:       uint64(opts.Limit),
	}
	aggregates, err := store.ListAggregates(ctx, filter)
	if err != nil {
		return err
	}
	return printAggregates(aggregates)
}

func printAggregates(aggregates []pricing.AggregateRecord) error {
	if len(aggregates) == 0 {
		fmt.Fprintln(os.Stdout, "no aggregates found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tOrigin\tDestination\tMin\tP10\tMedian\tP90\tMax")

	for _, agg := range aggregates {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			agg.Date.Format(pricing.DateLayout),
			sanitizeInline(agg.Origin),
			sanitizeInline(agg.Destination),
			formatDecimal(agg.MinPrice, 2),
			formatDecimal(agg.P10Price, 2),
			formatDecimal(agg.MedianPrice, 2),
			formatDecimal(agg.P90Price, 2),
			formatDecimal(agg.MaxPrice, 2),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
