package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Aggregate groups observations by (date, origin, destination) and computes the
// min, p10, median, p90 and max price of every group.
//
// The result holds one record per group sorted by date, origin, destination, so
// permuting the input yields the same output.
func Aggregate(observations []PriceObservation) ([]AggregateRecord, error) {
	groups := make(map[GroupKey][]decimal.Decimal)
	for _, obs := range observations {
		key := obs.Key()
		groups[key] = append(groups[key], obs.Price)
	}

	keys := make([]GroupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	SortKeys(keys)

	records := make([]AggregateRecord, 0, len(keys))
	for _, key := range keys {
		rec, err := summarise(key, groups[key])
		if err != nil {
			return nil, fmt.Errorf("aggregate %s %s->%s: %w", key.Date.Format(DateLayout), key.Origin, key.Destination, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func summarise(key GroupKey, prices []decimal.Decimal) (AggregateRecord, error) {
	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	stats := [5]decimal.Decimal{}
	for i, p := range []int{0, 10, 50, 90, 100} {
		v, err := Percentile(sorted, p)
		if err != nil {
			return AggregateRecord{}, err
		}
		stats[i] = v
	}

	return AggregateRecord{
		Date:        key.Date,
		Origin:      key.Origin,
		Destination: key.Destination,
		MinPrice:    stats[0],
		P10Price:    stats[1],
		MedianPrice: stats[2],
		P90Price:    stats[3],
		MaxPrice:    stats[4],
	}, nil
}

// DateLayout is the calendar day format used in logs, reports and file imports.
const DateLayout = "2006-01-02"

// SortKeys orders keys by date, then origin, then destination.
func SortKeys(keys []GroupKey) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Origin != b.Origin {
			return a.Origin < b.Origin
		}
		return a.Destination < b.Destination
	})
}
