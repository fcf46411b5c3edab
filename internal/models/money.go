package models

import (
	"fmt"
	"math"
)

// Amount is a monetary value in minor units (paise). Balances and transaction
// amounts are never held as floats internally; conversion happens only at the
// HTTP boundary.
type Amount int64

// AmountFromDecimal converts a decimal major-unit value (as received in JSON)
// to minor units, rounding half away from zero.
func AmountFromDecimal(v float64) Amount {
	return Amount(math.Round(v * 100))
}

// Decimal returns the major-unit value for serialization.
func (a Amount) Decimal() float64 {
	return float64(a) / 100
}

func (a Amount) String() string {
	return fmt.Sprintf("%d.%02d", a/100, abs64(int64(a%100)))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
