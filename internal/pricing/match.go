package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchRequest carries the inputs of one savings comparison.
//
// AsOf selects both the aggregates (by their date) and the user rates (by their
// validity window). A nil AsOf matches nothing: no rate can be shown to be valid
// on an unknown day, so Match returns an empty result.
type MatchRequest struct {
	UserEmail  string
	AsOf       *time.Time
	Aggregates []AggregateRecord
	UserRates  []UserRate
}

type route struct {
	origin      string
	destination string
}

// Match joins the user's rates valid on AsOf with the aggregates on the same
// route and returns one SavingsRecord per pair. Unknown users, expired rates and
// routes without market data produce no records rather than an error.
func Match(req MatchRequest) []SavingsRecord {
	if req.AsOf == nil {
		return []SavingsRecord{}
	}
	asOf := Day(*req.AsOf)

	byRoute := make(map[route][]AggregateRecord)
	for _, agg := range req.Aggregates {
		if !Day(agg.Date).Equal(asOf) {
			continue
		}
		r := route{origin: agg.Origin, destination: agg.Destination}
		byRoute[r] = append(byRoute[r], agg)
	}

	results := make([]SavingsRecord, 0)
	for _, rate := range req.UserRates {
		if rate.UserEmail != req.UserEmail || !rate.Covers(asOf) {
			continue
		}
		for _, agg := range byRoute[route{origin: rate.Origin, destination: rate.Destination}] {
			results = append(results, Compare(rate, agg))
		}
	}
	return results
}

// Compare computes the savings of a user rate against a single aggregate.
func Compare(rate UserRate, agg AggregateRecord) SavingsRecord {
	delta := func(stat decimal.Decimal) decimal.Decimal {
		return stat.Sub(rate.Price).Mul(rate.AnnualVolume)
	}

	return SavingsRecord{
		Date:        agg.Date,
		UserEmail:   rate.UserEmail,
		Origin:      agg.Origin,
		Destination: agg.Destination,
		UserPrice:   rate.Price,
		Volume:      rate.AnnualVolume,

		MinPrice:    agg.MinPrice,
		P10Price:    agg.P10Price,
		MedianPrice: agg.MedianPrice,
		P90Price:    agg.P90Price,
		MaxPrice:    agg.MaxPrice,

		PotentialSavingsMin:    delta(agg.MinPrice),
		PotentialSavingsP10:    delta(agg.P10Price),
		PotentialSavingsMedian: delta(agg.MedianPrice),
		PotentialSavingsP90:    delta(agg.P90Price),
		PotentialSavingsMax:    delta(agg.MaxPrice),
	}
}
