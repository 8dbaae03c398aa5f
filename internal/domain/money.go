package domain

import "github.com/shopspring/decimal"

// minorUnitExponent is the number of decimal places between minor and major units.
const minorUnitExponent = 2

// FormatAmount renders minor units as a fixed two-decimal major-unit string, e.g. 1500 -> "15.00".
func FormatAmount(minor int64) string {
	return decimal.New(minor, -minorUnitExponent).StringFixed(minorUnitExponent)
}

// ParseAmount converts a major-unit string such as "15.5" into minor units.
// More than two decimal places is rejected rather than rounded.
func ParseAmount(major string) (int64, error) {
	d, err := decimal.NewFromString(major)
	if err != nil {
		return 0, ErrValidation("invalid amount: " + major)
	}
	scaled := d.Shift(minorUnitExponent)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrValidation("amount has more than two decimal places: " + major)
	}
	if !scaled.LessThanOrEqual(decimal.NewFromInt(MaxAmount)) {
		return 0, ErrValidation("amount out of range: " + major)
	}
	return scaled.IntPart(), nil
}
