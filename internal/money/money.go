// Package money converts between centavo amounts and decimal strings.
package money

import (
	"fmt"
	"strings"

	"brewpos/internal/domain"
	"github.com/shopspring/decimal"
)

// Format renders cents as a two-decimal string, e.g. 5800 -> "58.00".
func Format(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Parse reads a decimal amount such as "58", "58.5" or "58.50" into cents.
// Negative amounts and sub-centavo precision are rejected.
func Parse(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: amount required", domain.ErrInvalidInput)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q", domain.ErrInvalidInput, raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: amount %q is negative", domain.ErrInvalidInput, raw)
	}
	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount %q has more than two decimals", domain.ErrInvalidInput, raw)
	}
	if cents.GreaterThan(decimal.NewFromInt(1 << 53)) {
		return 0, fmt.Errorf("%w: amount %q out of range", domain.ErrInvalidInput, raw)
	}
	return cents.IntPart(), nil
}
