// Package money renders integer minor-unit amounts for presentation. Ledger
// arithmetic never leaves int64; decimals appear only at the response edge.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a presentation view of a minor-unit value.
type Amount struct {
	Minor     int64  `json:"minor"`
	Currency  string `json:"currency"`
	Formatted string `json:"formatted"`
}

// Format renders minor units with the given number of fraction digits,
// e.g. Format(1234, 2) == "12.34".
func Format(minor int64, digits int32) string {
	if digits <= 0 {
		return decimal.NewFromInt(minor).String()
	}
	return decimal.New(minor, -digits).StringFixed(digits)
}

func New(minor int64, currency string, digits int32) Amount {
	return Amount{
		Minor:     minor,
		Currency:  currency,
		Formatted: Format(minor, digits),
	}
}

// ToMajorUnits converts minor units to whole gateway units, rejecting values
// that would lose precision.
func ToMajorUnits(minor int64, digits int32) (int64, error) {
	if digits <= 0 {
		return minor, nil
	}
	d := decimal.New(minor, -digits)
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has fractional major units", d.String())
	}
	return d.IntPart(), nil
}

// FromMajorString parses a gateway-reported amount such as "150000.00" into
// minor units.
func FromMajorString(value string, digits int32) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	scaled := d.Shift(digits)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d fraction digits", value, digits)
	}
	return scaled.IntPart(), nil
}
