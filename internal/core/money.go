// Package core holds the ledger domain model: transactions, per-user
// summaries and money parsing.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Money is a positive decimal quantity stored as cents. The sign of a
// ledger entry is carried by its kind, never by the amount.
type Money struct {
	Cents int64
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount converts a user-supplied decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rounds extra decimals half-to-even. Missing, signed, non-numeric, zero
// and negative input all fail with ErrInvalidAmount.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only unsigned positive values allowed
		return Money{}, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return Money{}, ErrInvalidAmount
	}
	// Take the first two fractional digits, then round half-to-even on
	// the rest. A lone trailing 5 is a tie; anything after it rounds up.
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
		}
		if len(fracPart) > 2 {
			d3 := fracPart[2]
			rest := strings.TrimRight(fracPart[3:], "0")
			if d3 > '5' || (d3 == '5' && (rest != "" || fracCents%2 == 1)) {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// String renders the amount with two decimals, e.g. "1234.50".
func (m Money) String() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if neg {
		return "-" + s
	}
	return s
}
