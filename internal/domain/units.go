package domain

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// FormatUnits renders a base-unit amount as a human decimal with the given
// number of token decimals, e.g. 1455000000 with 6 decimals is "1455".
func FormatUnits(amount *uint256.Int, decimals int32) string {
	d, err := decimal.NewFromString(amount.Dec())
	if err != nil {
		return amount.Dec()
	}
	return d.Shift(-decimals).String()
}

// ParseUnits converts a human decimal ("12.5") to base units. Fractions
// finer than the token precision are rejected.
func ParseUnits(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("domain: parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("domain: negative amount %q", s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("domain: amount %q exceeds %d decimals", s, decimals)
	}
	v, err := uint256.FromDecimal(scaled.Truncate(0).String())
	if err != nil {
		return nil, fmt.Errorf("domain: amount %q: %w", s, err)
	}
	return v, nil
}

// ParseAmount parses a base-unit decimal string.
func ParseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("domain: parse amount %q: %w", s, err)
	}
	return v, nil
}
