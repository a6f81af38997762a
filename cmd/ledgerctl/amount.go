package main

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// mg is the ledger's minor unit; g is a display scale of 1000 mg.
const (
	unitsMilligrams = "mg"
	unitsGrams      = "g"
)

var maxMilligrams = decimal.NewFromInt(1<<63 - 1)

// parseAmount converts a decimal amount at either scale to whole mg.
func parseAmount(raw, units string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a number", raw)
	}
	switch units {
	case unitsMilligrams, "":
	case unitsGrams:
		d = d.Shift(3)
	default:
		return 0, fmt.Errorf("units %q must be mg or g", units)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("amount %s%s is not a whole number of mg", raw, units)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be positive")
	}
	if d.GreaterThan(maxMilligrams) {
		return 0, fmt.Errorf("amount %s%s overflows", raw, units)
	}
	return d.IntPart(), nil
}

func formatGrams(mg int64) string {
	return decimal.New(mg, -3).String()
}
