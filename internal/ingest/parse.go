package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"ratebench/internal/pricing"
)

var (
	// MarketColumns are the headers a market data file must carry.
	MarketColumns = []string{"date", "origin", "destination", "price"}
	// UserRateColumns are the headers a user rate file must carry.
	UserRateColumns = []string{"origin", "destination", "effective_date", "expiry_date", "price", "annual_volume"}
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("money", validateMoney); err != nil {
		panic("register money validation: " + err.Error())
	}
}

// validateMoney accepts non-negative decimals with at most pricing.MoneyScale
// fractional digits. The optional param caps the integer digits so values fit
// their NUMERIC column.
func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil || d.IsNegative() {
		return false
	}
	if !d.Equal(d.Truncate(pricing.MoneyScale)) {
		return false
	}
	if fl.Param() == "" {
		return true
	}
	digits, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return d.LessThan(decimal.New(1, int32(digits)))
}

// Options tune how cell text is interpreted.
type Options struct {
	DateLayouts []string `default:"[\"2006-01-02\",\"01/02/2006\",\"2006-01-02T15:04:05Z07:00\",\"2006-01-02 15:04:05\"]"`
}

func (o Options) withDefaults() (Options, error) {
	if err := defaults.Set(&o); err != nil {
		return Options{}, fmt.Errorf("apply ingest defaults: %w", err)
	}
	return o, nil
}

type marketRow struct {
	Date        string `validate:"required"`
	Origin      string `validate:"required,max=255"`
	Destination string `validate:"required,max=255"`
	Price       string `validate:"required,money=8"`
}

type userRateRow struct {
	UserEmail     string `validate:"required,email,max=255"`
	Origin        string `validate:"required,max=255"`
	Destination   string `validate:"required,max=255"`
	EffectiveDate string `validate:"required"`
	ExpiryDate    string `validate:"required"`
	Price         string `validate:"required,money=8"`
	AnnualVolume  string `validate:"required,money=10"`
}

var fieldColumns = map[string]string{
	"Date":          "date",
	"UserEmail":     "user_email",
	"Origin":        "origin",
	"Destination":   "destination",
	"EffectiveDate": "effective_date",
	"ExpiryDate":    "expiry_date",
	"Price":         "price",
	"AnnualVolume":  "annual_volume",
}

// ParseMarket converts a market data table into price observations. Any invalid
// row rejects the whole table.
func ParseMarket(t *Table, opts Options) ([]pricing.PriceObservation, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	cols, err := t.columns(MarketColumns)
	if err != nil {
		return nil, err
	}

	observations := make([]pricing.PriceObservation, 0, len(t.Rows))
	for i, raw := range t.Rows {
		if blank(raw) {
			continue
		}
		rowNum := i + 2
		row := marketRow{
			Date:        cell(raw, cols["date"]),
			Origin:      cell(raw, cols["origin"]),
			Destination: cell(raw, cols["destination"]),
			Price:       cell(raw, cols["price"]),
		}
		if err := checkRow(rowNum, row); err != nil {
			return nil, err
		}

		date, err := parseDate(row.Date, opts.DateLayouts)
		if err != nil {
			return nil, &ValidationError{Row: rowNum, Field: "date", Reason: "is not a date", Value: row.Date}
		}
		observations = append(observations, pricing.PriceObservation{
			Date:        date,
			Origin:      row.Origin,
			Destination: row.Destination,
			Price:       decimal.RequireFromString(row.Price),
		})
	}
	return observations, nil
}

// ParseUserRates converts a user rate table into rates owned by userEmail.
func ParseUserRates(t *Table, userEmail string, opts Options) ([]pricing.UserRate, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	cols, err := t.columns(UserRateColumns)
	if err != nil {
		return nil, err
	}

	rates := make([]pricing.UserRate, 0, len(t.Rows))
	for i, raw := range t.Rows {
		if blank(raw) {
			continue
		}
		rowNum := i + 2
		row := userRateRow{
			UserEmail:     userEmail,
			Origin:        cell(raw, cols["origin"]),
			Destination:   cell(raw, cols["destination"]),
			EffectiveDate: cell(raw, cols["effective_date"]),
			ExpiryDate:    cell(raw, cols["expiry_date"]),
			Price:         cell(raw, cols["price"]),
			AnnualVolume:  cell(raw, cols["annual_volume"]),
		}
		if err := checkRow(rowNum, row); err != nil {
			return nil, err
		}

		effective, err := parseDate(row.EffectiveDate, opts.DateLayouts)
		if err != nil {
			return nil, &ValidationError{Row: rowNum, Field: "effective_date", Reason: "is not a date", Value: row.EffectiveDate}
		}
		expiry, err := parseDate(row.ExpiryDate, opts.DateLayouts)
		if err != nil {
			return nil, &ValidationError{Row: rowNum, Field: "expiry_date", Reason: "is not a date", Value: row.ExpiryDate}
		}
		if expiry.Before(effective) {
			return nil, &ValidationError{Row: rowNum, Field: "expiry_date", Reason: "is before effective_date", Value: row.ExpiryDate}
		}

		rates = append(rates, pricing.UserRate{
			UserEmail:     userEmail,
			Origin:        row.Origin,
			Destination:   row.Destination,
			EffectiveDate: effective,
			ExpiryDate:    expiry,
			Price:         decimal.RequireFromString(row.Price),
			AnnualVolume:  decimal.RequireFromString(row.AnnualVolume),
		})
	}
	return rates, nil
}

func checkRow(rowNum int, row interface{}) error {
	err := validate.Struct(row)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("row %d: %w", rowNum, err)
	}

	fe := fieldErrs[0]
	return &ValidationError{
		Row:    rowNum,
		Field:  fieldColumns[fe.Field()],
		Reason: reason(fe),
		Value:  fe.Value(),
	}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "money":
		return fmt.Sprintf("must be a non-negative decimal below 1e%s with at most %d decimal places", fe.Param(), pricing.MoneyScale)
	case "email":
		return "must be a valid email"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// parseDate accepts the configured layouts and Excel serial day numbers.
func parseDate(value string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			// the calendar day as written, whatever offset the cell carries
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return pricing.Day(t), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}
