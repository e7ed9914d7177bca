package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"ratebench/internal/pricing"
)

// insertChunkSize keeps multi-row inserts well below the postgres parameter limit.
const insertChunkSize = 1000

var aggregateColumns = []string{
	"date",
	"origin",
	"destination",
	"min_price",
	"percentile_10_price",
	"median_price",
	"percentile_90_price",
	"max_price",
}

// records implements RecordStore on top of a pool or a transaction.
type records struct {
	q querier
}

func (r records) InsertObservations(ctx context.Context, batchID uuid.UUID, observations []pricing.PriceObservation) error {
	for start := 0; start < len(observations); start += insertChunkSize {
		end := min(start+insertChunkSize, len(observations))
		sql, args, err := insertObservationsQuery(batchID, observations[start:end]).ToSql()
		if err != nil {
			return fmt.Errorf("build insert observations: %w", err)
		}
		if _, err := r.q.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert observations: %w", err)
		}
	}
	return nil
}

func (r records) LoadObservations(ctx context.Context) ([]pricing.PriceObservation, error) {
	rows, err := r.q.Query(ctx, loadObservationsSQL)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	defer rows.Close()

	observations := make([]pricing.PriceObservation, 0)
	for rows.Next() {
		var (
			obs      pricing.PriceObservation
			priceStr string
		)
		if err := rows.Scan(&obs.Date, &obs.Origin, &obs.Destination, &priceStr); err != nil {
			return nil, err
		}
		if obs.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("parse observation price: %w", err)
		}
		obs.Date = pricing.Day(obs.Date)
		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

func (r records) SaveAggregate(ctx context.Context, rec pricing.AggregateRecord) error {
	_, err := r.q.Exec(ctx, upsertAggregateSQL,
		pricing.Day(rec.Date),
		rec.Origin,
		rec.Destination,
		rec.MinPrice.String(),
		rec.P10Price.String(),
		rec.MedianPrice.String(),
		rec.P90Price.String(),
		rec.MaxPrice.String(),
	)
	if err != nil {
		return fmt.Errorf("upsert aggregate: %w", err)
	}
	return nil
}

func (r records) LoadAggregates(ctx context.Context, date *time.Time) ([]pricing.AggregateRecord, error) {
	filter := AggregateFilter{}
	if date != nil {
		filter.From = date
		filter.To = date
	}
	return r.ListAggregates(ctx, filter)
}

func (r records) ListAggregates(ctx context.Context, filter AggregateFilter) ([]pricing.AggregateRecord, error) {
	sql, args, err := listAggregatesQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list aggregates: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	defer rows.Close()

	aggregates := make([]pricing.AggregateRecord, 0)
	for rows.Next() {
		rec, scanErr := scanAggregate(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		aggregates = append(aggregates, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return aggregates, nil
}

func (r records) InsertUserRates(ctx context.Context, batchID uuid.UUID, rates []pricing.UserRate) error {
	for start := 0; start < len(rates); start += insertChunkSize {
		end := min(start+insertChunkSize, len(rates))
		sql, args, err := insertUserRatesQuery(batchID, rates[start:end]).ToSql()
		if err != nil {
			return fmt.Errorf("build insert user rates: %w", err)
		}
		if _, err := r.q.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert user rates: %w", err)
		}
	}
	return nil
}

func (r records) LoadUserRates(ctx context.Context, userEmail string) ([]pricing.UserRate, error) {
	rows, err := r.q.Query(ctx, loadUserRatesSQL, userEmail)
	if err != nil {
		return nil, fmt.Errorf("load user rates: %w", err)
	}
	defer rows.Close()

	rates := make([]pricing.UserRate, 0)
	for rows.Next() {
		var (
			rate                pricing.UserRate
			priceStr, volumeStr string
		)
		if err := rows.Scan(
			&rate.UserEmail,
			&rate.Origin,
			&rate.Destination,
			&rate.EffectiveDate,
			&rate.ExpiryDate,
			&priceStr,
			&volumeStr,
		); err != nil {
			return nil, err
		}
		if rate.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("parse user price: %w", err)
		}
		if rate.AnnualVolume, err = decimal.NewFromString(volumeStr); err != nil {
			return nil, fmt.Errorf("parse annual volume: %w", err)
		}
		rate.EffectiveDate = pricing.Day(rate.EffectiveDate)
		rate.ExpiryDate = pricing.Day(rate.ExpiryDate)
		rates = append(rates, rate)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rates, nil
}

func insertObservationsQuery(batchID uuid.UUID, observations []pricing.PriceObservation) squirrel.InsertBuilder {
	builder := squirrel.Insert("market_rates").
		Columns("batch_id", "date", "origin", "destination", "price").
		PlaceholderFormat(squirrel.Dollar)
	for _, obs := range observations {
		builder = builder.Values(batchID, pricing.Day(obs.Date), obs.Origin, obs.Destination, obs.Price.String())
	}
	return builder
}

func insertUserRatesQuery(batchID uuid.UUID, rates []pricing.UserRate) squirrel.InsertBuilder {
	builder := squirrel.Insert("user_rates").
		Columns("batch_id", "user_email", "origin", "destination", "effective_date", "expiry_date", "price", "annual_volume").
		PlaceholderFormat(squirrel.Dollar)
	for _, rate := range rates {
		builder = builder.Values(
			batchID,
			rate.UserEmail,
			rate.Origin,
			rate.Destination,
			pricing.Day(rate.EffectiveDate),
			pricing.Day(rate.ExpiryDate),
			rate.Price.String(),
			rate.AnnualVolume.String(),
		)
	}
	return builder
}

func listAggregatesQuery(filter AggregateFilter) squirrel.SelectBuilder {
	query := squirrel.Select(aggregateColumns...).
		From("aggregated_market_prices").
		OrderBy("date", "origin", "destination").
		PlaceholderFormat(squirrel.Dollar)

	if filter.Origin != "" {
		query = query.Where(squirrel.Eq{"origin": filter.Origin})
	}
	if filter.Destination != "" {
		query = query.Where(squirrel.Eq{"destination": filter.Destination})
	}
	if filter.From != nil {
		query = query.Where(squirrel.GtOrEq{"date": pricing.Day(*filter.From)})
	}
	if filter.To != nil {
		query = query.Where(squirrel.LtOrEq{"date": pricing.Day(*filter.To)})
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return query
}

func scanAggregate(rows pgx.Rows) (pricing.AggregateRecord, error) {
	var (
		rec   pricing.AggregateRecord
		stats [5]string
	)
	if err := rows.Scan(
		&rec.Date,
		&rec.Origin,
		&rec.Destination,
		&stats[0],
		&stats[1],
		&stats[2],
		&stats[3],
		&stats[4],
	); err != nil {
		return pricing.AggregateRecord{}, err
	}

	targets := []*decimal.Decimal{&rec.MinPrice, &rec.P10Price, &rec.MedianPrice, &rec.P90Price, &rec.MaxPrice}
	for i, target := range targets {
		value, err := decimal.NewFromString(stats[i])
		if err != nil {
			return pricing.AggregateRecord{}, fmt.Errorf("parse %s: %w", aggregateColumns[i+3], err)
		}
		*target = value
	}
	rec.Date = pricing.Day(rec.Date)
	return rec, nil
}

var _ RecordStore = records{}
