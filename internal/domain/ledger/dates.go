package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	days := int(DateOnly(a).Sub(DateOnly(b)).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// Cent is the smallest currency unit of the ledger.
var Cent = decimal.New(1, -2)

// RoundCents rounds an amount to two decimal places, half away from zero.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
