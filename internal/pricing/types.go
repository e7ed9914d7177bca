package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceObservation is a single market quote for a route on a given day.
type PriceObservation struct {
	Date        time.Time
	Origin      string
	Destination string
	Price       decimal.Decimal
}

// GroupKey identifies the observations summarised by one aggregate.
type GroupKey struct {
	Date        time.Time
	Origin      string
	Destination string
}

// Key returns the group the observation belongs to.
func (o PriceObservation) Key() GroupKey {
	return GroupKey{Date: Day(o.Date), Origin: o.Origin, Destination: o.Destination}
}

// AggregateRecord summarises the price distribution of one group.
type AggregateRecord struct {
	Date        time.Time       `json:"date"`
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	MinPrice    decimal.Decimal `json:"min_price"`
	P10Price    decimal.Decimal `json:"percentile_10_price"`
	MedianPrice decimal.Decimal `json:"median_price"`
	P90Price    decimal.Decimal `json:"percentile_90_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
}

// Key returns the group the aggregate summarises.
func (a AggregateRecord) Key() GroupKey {
	return GroupKey{Date: Day(a.Date), Origin: a.Origin, Destination: a.Destination}
}

// UserRate is a contracted price for a route, valid over [EffectiveDate, ExpiryDate].
type UserRate struct {
	UserEmail     string
	Origin        string
	Destination   string
	EffectiveDate time.Time
	ExpiryDate    time.Time
	Price         decimal.Decimal
	AnnualVolume  decimal.Decimal
}

// Covers reports whether the rate is valid on day. Both bounds are inclusive.
func (r UserRate) Covers(day time.Time) bool {
	d := Day(day)
	return !d.Before(Day(r.EffectiveDate)) && !d.After(Day(r.ExpiryDate))
}

// SavingsRecord compares one user rate against one aggregate.
//
// Each PotentialSavings field is (statistic - user price) * annual volume. A positive
// value means the market statistic is more expensive than what the user pays.
type SavingsRecord struct {
	Date        time.Time       `json:"date"`
	UserEmail   string          `json:"user_email"`
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	UserPrice   decimal.Decimal `json:"user_price"`
	Volume      decimal.Decimal `json:"annual_volume"`

	MinPrice    decimal.Decimal `json:"min_price"`
	P10Price    decimal.Decimal `json:"percentile_10_price"`
	MedianPrice decimal.Decimal `json:"median_price"`
	P90Price    decimal.Decimal `json:"percentile_90_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`

	PotentialSavingsMin    decimal.Decimal `json:"potential_savings_min_price"`
	PotentialSavingsP10    decimal.Decimal `json:"potential_savings_percentile_10_price"`
	PotentialSavingsMedian decimal.Decimal `json:"potential_savings_median_price"`
	PotentialSavingsP90    decimal.Decimal `json:"potential_savings_percentile_90_price"`
	PotentialSavingsMax    decimal.Decimal `json:"potential_savings_max_price"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
