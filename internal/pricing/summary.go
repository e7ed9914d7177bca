package pricing

import "github.com/shopspring/decimal"

// SavingsTotals sums the potential savings of a match result per statistic.
type SavingsTotals struct {
	Records int
	Min     decimal.Decimal
	P10     decimal.Decimal
	Median  decimal.Decimal
	P90     decimal.Decimal
	Max     decimal.Decimal
}

// Totals adds up every potential savings column of records.
func Totals(records []SavingsRecord) SavingsTotals {
	t := SavingsTotals{Records: len(records)}
	for _, rec := range records {
		t.Min = t.Min.Add(rec.PotentialSavingsMin)
		t.P10 = t.P10.Add(rec.PotentialSavingsP10)
		t.Median = t.Median.Add(rec.PotentialSavingsMedian)
		t.P90 = t.P90.Add(rec.PotentialSavingsP90)
		t.Max = t.Max.Add(rec.PotentialSavingsMax)
	}
	return t
}
