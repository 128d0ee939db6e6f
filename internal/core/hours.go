package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Hours travel as JSON numbers. Quoted values are still accepted on input.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseHours converts a form value to an hour amount.
//
// Both dot (1.5) and comma (1,5) decimal separators are accepted. The sign is
// preserved so that the Guard, not the parser, rejects zero and negative values.
//
// Examples:
//
//	ParseHours("8")    -> 8, nil
//	ParseHours("1,25") -> 1.25, nil
//	ParseHours("-2")   -> -2, nil
//	ParseHours("1.2.3") -> 0, ErrInvalidHours
func ParseHours(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidHours
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidHours
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidHours
	}
	return d, nil
}

// ParseOptionalHours returns an invalid NullDecimal for an empty value so the
// Guard can report the field as missing.
func ParseOptionalHours(s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := ParseHours(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// FormatHours renders hours without trailing zeros, e.g. "8", "2.5".
func FormatHours(d decimal.Decimal) string {
	return d.String()
}

// Hours is a shorthand for exact integer hour amounts.
func Hours(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// NullHours is Hours wrapped as a present optional value.
func NullHours(n int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(n))
}
