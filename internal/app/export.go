package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"ratebench/internal/pricing"
	"ratebench/internal/storage"
)

// Export renders stored aggregates as CSV and/or a PNG chart of one route.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.PNGPath != "" && (opts.Origin == "" || opts.Destination == "") {
		return errors.New("--png requires --origin and --destination")
	}
	if opts.From != nil && opts.To != nil && opts.To.Before(*opts.From) {
		return errors.New("from must not be after to")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	aggregates, err := store.ListAggregates(ctx, storage.AggregateFilter{
		Origin:      opts.Origin,
		Destination: opts.Destination,
		From:        opts.From,
		To:          opts.To,
	})
	if err != nil {
		return err
	}
	if len(aggregates) == 0 {
		a.Logger.Info().Msg("no aggregates found for export window")
		return nil
	}

	downsampled := downsampleAggregates(aggregates, opts.MaxPoints)
	a.Logger.Info().Int("total", len(aggregates)).Int("exported", len(downsampled)).Msg("exporting aggregates")

	if opts.CSVPath != "" {
		if err := writeAggregatesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRoutePNG(opts.PNGPath, opts.Origin+" - "+opts.Destination, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleAggregates(aggregates []pricing.AggregateRecord, max int) []pricing.AggregateRecord {
	if max <= 0 || len(aggregates) <= max {
		return aggregates
	}
	if max == 1 {
		return aggregates[:1]
	}

	result := make([]pricing.AggregateRecord, 0, max)
	step := float64(len(aggregates)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(aggregates) {
			idx = len(aggregates) - 1
		}
		result = append(result, aggregates[idx])
	}
	return result
}

func writeAggregatesCSV(path string, aggregates []pricing.AggregateRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"date", "origin", "destination", "min_price", "percentile_10_price", "median_price", "percentile_90_price", "max_price"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, agg := range aggregates {
		record := []string{
			agg.Date.Format(pricing.DateLayout),
			agg.Origin,
			agg.Destination,
			agg.MinPrice.StringFixed(2),
			agg.P10Price.StringFixed(2),
			agg.MedianPrice.StringFixed(2),
			agg.P90Price.StringFixed(2),
			agg.MaxPrice.StringFixed(2),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeRoutePNG(path, title string, aggregates []pricing.AggregateRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(aggregates))
	stats := [5][]float64{}
	for i := range stats {
		stats[i] = make([]float64, len(aggregates))
	}

	for i, agg := range aggregates {
		x[i] = agg.Date
		for j, v := range []decimal.Decimal{agg.MinPrice, agg.P10Price, agg.MedianPrice, agg.P90Price, agg.MaxPrice} {
			stats[j][i] = v.InexactFloat64()
		}
	}

	names := [5]string{"Min", "P10", "Median", "P90", "Max"}
	series := make([]chart.Series, 0, len(names))
	for i, name := range names {
		series = append(series, chart.TimeSeries{
			Name:    name,
			XValues: x,
			YValues: stats[i],
		})
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
