// Package money holds the fixed-point helpers shared by every monetary column.
// Columns are numeric(10,2): ten digits in total, two after the point.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Scale     = 2
	Precision = 10
)

// Max is the largest magnitude a numeric(10,2) column can hold.
var Max = decimal.RequireFromString("99999999.99")

// Zero is the additive identity at column scale.
var Zero = decimal.Zero

// Parse reads a user supplied amount. It accepts a comma as decimal separator.
func Parse(value string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	raw = strings.ReplaceAll(raw, ",", ".")
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if err := Validate(amount); err != nil {
		return decimal.Zero, err
	}
	return Normalize(amount), nil
}

// Validate ensures the amount fits the column without rounding.
func Validate(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(Scale)) {
		return fmt.Errorf("amount %s has more than %d decimal places", amount.String(), Scale)
	}
	if amount.Abs().GreaterThan(Max) {
		return fmt.Errorf("amount %s exceeds %s", amount.String(), Max.StringFixed(Scale))
	}
	return nil
}

// Normalize rounds a value read back from the store to column scale. sqlite
// gives NUMERIC columns REAL storage, so reads come back as binary floats.
func Normalize(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Scale)
}

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-Scale)
}

// Sum adds the amounts at column scale.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return Normalize(total)
}

// Format renders an amount with two decimals.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(Scale)
}
