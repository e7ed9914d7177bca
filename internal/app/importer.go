package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ratebench/internal/ingest"
	"ratebench/internal/service"
	"ratebench/internal/storage"
)

func (a *App) ingestOptions() ingest.Options {
	return ingest.Options{DateLayouts: a.Config.Ingest.DateLayouts}
}

// ImportMarket loads a market data file into market_rates.
func (a *App) ImportMarket(ctx context.Context, opts ImportOptions) error {
	table, err := ingest.ReadFile(opts.Path, a.Config.Ingest.Sheet)
	if err != nil {
		return err
	}
	observations, err := ingest.ParseMarket(table, a.ingestOptions())
	if err != nil {
		return reportValidation(err)
	}

	if opts.DryRun {
		a.Logger.Info().Str("path", opts.Path).Int("rows", len(observations)).Msg("market file is valid; dry run, nothing stored")
		return nil
	}

	return a.withService(ctx, func(svc *service.Service, _ *storage.Store) error {
		res, err := svc.ImportMarket(ctx, observations, opts.Aggregate)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "imported %d market rows (batch %s)\n", res.Rows, res.BatchID)
		if res.Aggregation != nil && !res.Aggregation.Skipped {
			fmt.Fprintf(os.Stdout, "aggregated %d observations into %d groups\n", res.Aggregation.Observations, res.Aggregation.Groups)
		}
		return nil
	})
}

// ImportUserRates loads a user's contracted rates into user_rates.
func (a *App) ImportUserRates(ctx context.Context, opts ImportOptions) error {
	if opts.UserEmail == "" {
		return errors.New("user email is required for rate imports")
	}

	table, err := ingest.ReadFile(opts.Path, a.Config.Ingest.Sheet)
	if err != nil {
		return err
	}
	rates, err := ingest.ParseUserRates(table, opts.UserEmail, a.ingestOptions())
	if err != nil {
		return reportValidation(err)
	}

	if opts.DryRun {
		a.Logger.Info().Str("path", opts.Path).Int("rows", len(rates)).Msg("rate file is valid; dry run, nothing stored")
		return nil
	}

	return a.withService(ctx, func(svc *service.Service, _ *storage.Store) error {
		res, err := svc.ImportUserRates(ctx, rates)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "imported %d rates for %s (batch %s)\n", res.Rows, opts.UserEmail, res.BatchID)
		return nil
	})
}

func reportValidation(err error) error {
	var verr *ingest.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("file rejected: %w", verr)
	}
	return err
}
