package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const user = "buyer@example.com"

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func aggregate(d time.Time, origin, dest string, stats ...string) AggregateRecord {
	return AggregateRecord{
		Date:        d,
		Origin:      origin,
		Destination: dest,
		MinPrice:    decimal.RequireFromString(stats[0]),
		P10Price:    decimal.RequireFromString(stats[1]),
		MedianPrice: decimal.RequireFromString(stats[2]),
		P90Price:    decimal.RequireFromString(stats[3]),
		MaxPrice:    decimal.RequireFromString(stats[4]),
	}
}

func yearRate(origin, dest, price, volume string) UserRate {
	return UserRate{
		UserEmail:     user,
		Origin:        origin,
		Destination:   dest,
		EffectiveDate: date(2024, 1, 1),
		ExpiryDate:    date(2024, 12, 31),
		Price:         decimal.RequireFromString(price),
		AnnualVolume:  decimal.RequireFromString(volume),
	}
}

func TestMatchSavingsArithmetic(t *testing.T) {
	asOf := date(2024, 6, 15)
	req := MatchRequest{
		UserEmail:  user,
		AsOf:       &asOf,
		Aggregates: []AggregateRecord{aggregate(asOf, "A", "B", "80", "90", "120", "150", "200")},
		UserRates:  []UserRate{yearRate("A", "B", "100", "1000")},
	}

	got := Match(req)
	require.Len(t, got, 1)

	rec := got[0]
	assert.Equal(t, user, rec.UserEmail)
	assert.True(t, rec.Date.Equal(asOf))
	requireDecimal(t, "100", rec.UserPrice)
	requireDecimal(t, "120", rec.MedianPrice)
	requireDecimal(t, "-20000", rec.PotentialSavingsMin)
	requireDecimal(t, "-10000", rec.PotentialSavingsP10)
	requireDecimal(t, "20000", rec.PotentialSavingsMedian)
	requireDecimal(t, "50000", rec.PotentialSavingsP90)
	requireDecimal(t, "100000", rec.PotentialSavingsMax)
}

func TestMatchValidityWindow(t *testing.T) {
	inside := date(2024, 6, 15)
	outside := date(2025, 1, 1)
	rates := []UserRate{yearRate("A", "B", "100", "10")}
	aggs := []AggregateRecord{
		aggregate(inside, "A", "B", "1", "2", "3", "4", "5"),
		aggregate(outside, "A", "B", "1", "2", "3", "4", "5"),
	}

	assert.Len(t, Match(MatchRequest{UserEmail: user, AsOf: &inside, Aggregates: aggs, UserRates: rates}), 1)
	assert.Empty(t, Match(MatchRequest{UserEmail: user, AsOf: &outside, Aggregates: aggs, UserRates: rates}))

	first := date(2024, 1, 1)
	last := date(2024, 12, 31)
	aggs = append(aggs,
		aggregate(first, "A", "B", "1", "2", "3", "4", "5"),
		aggregate(last, "A", "B", "1", "2", "3", "4", "5"),
	)
	assert.Len(t, Match(MatchRequest{UserEmail: user, AsOf: &first, Aggregates: aggs, UserRates: rates}), 1)
	assert.Len(t, Match(MatchRequest{UserEmail: user, AsOf: &last, Aggregates: aggs, UserRates: rates}), 1)
}

func TestMatchEmptyCases(t *testing.T) {
	asOf := date(2024, 6, 15)
	aggs := []AggregateRecord{aggregate(asOf, "A", "B", "1", "2", "3", "4", "5")}
	rates := []UserRate{yearRate("A", "B", "100", "10")}

	t.Run("unknown user", func(t *testing.T) {
		got := Match(MatchRequest{UserEmail: "nobody@example.com", AsOf: &asOf, Aggregates: aggs, UserRates: rates})
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
	t.Run("no rates", func(t *testing.T) {
		assert.Empty(t, Match(MatchRequest{UserEmail: user, AsOf: &asOf, Aggregates: aggs}))
	})
	t.Run("no aggregate on route", func(t *testing.T) {
		other := []UserRate{yearRate("C", "D", "100", "10")}
		assert.Empty(t, Match(MatchRequest{UserEmail: user, AsOf: &asOf, Aggregates: aggs, UserRates: other}))
	})
	t.Run("reverse route does not match", func(t *testing.T) {
		reverse := []UserRate{yearRate("B", "A", "100", "10")}
		assert.Empty(t, Match(MatchRequest{UserEmail: user, AsOf: &asOf, Aggregates: aggs, UserRates: reverse}))
	})
	t.Run("nil as-of matches nothing", func(t *testing.T) {
		got := Match(MatchRequest{UserEmail: user, Aggregates: aggs, UserRates: rates})
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestMatchJoinsEveryAggregateOnRoute(t *testing.T) {
	asOf := date(2024, 3, 1)
	aggs := []AggregateRecord{
		aggregate(asOf, "A", "B", "1", "2", "3", "4", "5"),
		aggregate(asOf, "A", "B", "6", "7", "8", "9", "10"),
		aggregate(asOf, "A", "C", "1", "2", "3", "4", "5"),
		aggregate(asOf.AddDate(0, 0, 1), "A", "B", "1", "2", "3", "4", "5"),
	}
	rates := []UserRate{
		yearRate("A", "B", "4", "2"),
		yearRate("A", "C", "4", "2"),
	}
	rates[1].UserEmail = "someone-else@example.com"

	got := Match(MatchRequest{UserEmail: user, AsOf: &asOf, Aggregates: aggs, UserRates: rates})
	require.Len(t, got, 2)
	requireDecimal(t, "-2", got[0].PotentialSavingsMedian)
	requireDecimal(t, "8", got[1].PotentialSavingsMedian)
}

func TestMatchIdempotent(t *testing.T) {
	asOf := date(2024, 6, 15)
	req := MatchRequest{
		UserEmail: user,
		AsOf:      &asOf,
		Aggregates: []AggregateRecord{
			aggregate(asOf, "A", "B", "80", "90", "120", "150", "200"),
			aggregate(asOf, "B", "C", "8", "9", "12", "15", "20"),
		},
		UserRates: []UserRate{yearRate("A", "B", "100", "1000"), yearRate("B", "C", "10", "5")},
	}

	assert.Equal(t, Match(req), Match(req))
}

func TestTotals(t *testing.T) {
	asOf := date(2024, 6, 15)
	records := Match(MatchRequest{
		UserEmail: user,
		AsOf:      &asOf,
		Aggregates: []AggregateRecord{
			aggregate(asOf, "A", "B", "80", "90", "120", "150", "200"),
			aggregate(asOf, "B", "C", "8", "9", "12", "15", "20"),
		},
		UserRates: []UserRate{yearRate("A", "B", "100", "1000"), yearRate("B", "C", "10", "5")},
	})

	totals := Totals(records)
	assert.Equal(t, 2, totals.Records)
	requireDecimal(t, "20010", totals.Median)
	requireDecimal(t, "-20010", totals.Min)
}

func TestUserRateCoversIgnoresTimeOfDay(t *testing.T) {
	rate := yearRate("A", "B", "1", "1")
	assert.True(t, rate.Covers(date(2024, 12, 31).Add(23*time.Hour)))
	assert.False(t, rate.Covers(date(2023, 12, 31).Add(23*time.Hour)))
}
