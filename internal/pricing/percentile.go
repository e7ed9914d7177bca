package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept on stored prices.
const MoneyScale int32 = 2

var (
	// ErrEmptySample is returned when a statistic is requested over no values.
	ErrEmptySample = errors.New("pricing: empty sample")
	// ErrPercentileRange is returned for percentiles outside [0, 100].
	ErrPercentileRange = errors.New("pricing: percentile must be within [0, 100]")
)

// Percentile returns the p-th percentile of an ascending slice using linear
// interpolation between closest ranks: rank = p/100 * (n-1).
//
// The rank is split into a whole index and a hundredths fraction with integer
// arithmetic, so the result is exact before rounding to MoneyScale.
func Percentile(sorted []decimal.Decimal, p int) (decimal.Decimal, error) {
	n := len(sorted)
	if n == 0 {
		return decimal.Decimal{}, ErrEmptySample
	}
	if p < 0 || p > 100 {
		return decimal.Decimal{}, ErrPercentileRange
	}

	scaled := p * (n - 1)
	lower := scaled / 100
	rem := scaled % 100
	if rem == 0 {
		return sorted[lower].Round(MoneyScale), nil
	}

	weight := decimal.New(int64(rem), -2)
	spread := sorted[lower+1].Sub(sorted[lower])
	return sorted[lower].Add(spread.Mul(weight)).Round(MoneyScale), nil
}
