package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratebench/internal/pricing"
)

func TestListAggregatesQueryNoFilter(t *testing.T) {
	sql, args, err := listAggregatesQuery(AggregateFilter{}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT date, origin, destination, min_price, percentile_10_price, median_price, percentile_90_price, max_price FROM aggregated_market_prices ORDER BY date, origin, destination", sql)
	assert.Empty(t, args)
}

func TestListAggregatesQueryFilters(t *testing.T) {
	from := time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	sql, args, err := listAggregatesQuery(AggregateFilter{
		Origin:      "CNSHA",
		Destination: "USLAX",
		From:        &from,
		To:          &to,
		Limit:       10,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE origin = $1 AND destination = $2 AND date >= $3 AND date <= $4")
	assert.Contains(t, sql, "LIMIT 10")
	require.Len(t, args, 4)
	assert.Equal(t, "CNSHA", args[0])
	assert.Equal(t, "USLAX", args[1])
	assert.Equal(t, pricing.Day(from), args[2])
	assert.Equal(t, to, args[3])
}

func TestInsertObservationsQuery(t *testing.T) {
	batch := uuid.New()
	day := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	observations := []pricing.PriceObservation{
		{Date: day, Origin: "A", Destination: "B", Price: decimal.RequireFromString("10.50")},
		{Date: day, Origin: "A", Destination: "B", Price: decimal.RequireFromString("11")},
	}

	sql, args, err := insertObservationsQuery(batch, observations).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO market_rates (batch_id,date,origin,destination,price)")
	assert.Contains(t, sql, "($6,$7,$8,$9,$10)")
	require.Len(t, args, 10)
	assert.Equal(t, batch, args[0])
	assert.Equal(t, "10.5", args[4])
	assert.Equal(t, "11", args[9])
}

func TestInsertUserRatesQuery(t *testing.T) {
	batch := uuid.New()
	rate := pricing.UserRate{
		UserEmail:     "buyer@example.com",
		Origin:        "A",
		Destination:   "B",
		EffectiveDate: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		ExpiryDate:    time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Price:         decimal.RequireFromString("100"),
		AnnualVolume:  decimal.RequireFromString("1000"),
	}

	sql, args, err := insertUserRatesQuery(batch, []pricing.UserRate{rate}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO user_rates")
	require.Len(t, args, 8)
	assert.Equal(t, "buyer@example.com", args[1])
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), args[4])
	assert.Equal(t, "1000", args[7])
}

func TestStoreNotConfigured(t *testing.T) {
	var s *Store
	ctx := context.Background()

	_, err := s.LoadObservations(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)

	err = s.WithTx(ctx, func(RecordStore) error { return nil })
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, _, err = s.TryAdvisoryLock(ctx, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.ErrorIs(t, s.EnsureSchema(ctx), ErrNotConfigured)
}

func TestSchemaDeclaresGroupKey(t *testing.T) {
	assert.Contains(t, schemaSQL, "UNIQUE (date, origin, destination)")
	assert.Contains(t, upsertAggregateSQL, "ON CONFLICT (date, origin, destination) DO UPDATE")
}
