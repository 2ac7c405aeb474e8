// Package money parses and formats decimal amounts without going through
// floating point, so stored prices and rates never drift.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidDecimal = errors.New("invalid_decimal")

// ParseAmount converts a decimal string ("100", "49.99") into int64 minor units
// (two fractional digits). More than two fractional digits is rejected rather
// than rounded, since stored prices must round-trip exactly.
func ParseAmount(raw string) (int64, error) {
	units, err := parseScaled(raw, 2)
	if err != nil {
		return 0, err
	}
	return units, nil
}

// ParsePercent converts a whole-number percentage string ("10", "7.5") into
// basis points (10 -> 1000). Up to two fractional digits are accepted.
func ParsePercent(raw string) (int64, error) {
	return parseScaled(raw, 2)
}

// FormatAmount renders minor units back into a decimal string.
func FormatAmount(units int64) string {
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}
	return fmt.Sprintf("%s%d.%02d", sign, units/100, units%100)
}

// ApplyPercent computes units * bp / 10000 with round-half-up on the absolute
// value. Rounding happens only here so intermediate values stay exact.
func ApplyPercent(units int64, basisPoints int64) int64 {
	return roundDiv(units*basisPoints, 10000)
}

// InclusivePortion back-calculates the embedded portion of a tax-inclusive
// amount: units * bp / (10000 + bp).
func InclusivePortion(units int64, basisPoints int64) int64 {
	if basisPoints <= 0 {
		return 0
	}
	return roundDiv(units*basisPoints, 10000+basisPoints)
}

func roundDiv(n, d int64) int64 {
	if d == 0 {
		return 0
	}
	neg := false
	if n < 0 {
		neg = true
		n = -n
	}
	q := (n + d/2) / d
	if neg {
		return -q
	}
	return q
}

func parseScaled(raw string, scale int) (int64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, ErrInvalidDecimal
	}

	neg := false
	switch value[0] {
	case '-':
		neg = true
		value = value[1:]
	case '+':
		value = value[1:]
	}
	if value == "" {
		return 0, ErrInvalidDecimal
	}

	whole := value
	frac := ""
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		whole = value[:idx]
		frac = value[idx+1:]
	}
	if whole == "" && frac == "" {
		return 0, ErrInvalidDecimal
	}
	if len(frac) > scale {
		return 0, ErrInvalidDecimal
	}
	for len(frac) < scale {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}

	wholeUnits, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidDecimal
	}
	fracUnits := int64(0)
	if frac != "" {
		fracUnits, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrInvalidDecimal
		}
	}

	factor := int64(1)
	for i := 0; i < scale; i++ {
		factor *= 10
	}
	units := wholeUnits*factor + fracUnits
	if neg {
		units = -units
	}
	return units, nil
}
