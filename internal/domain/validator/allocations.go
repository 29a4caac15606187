// Package validator checks allocation rows before they are written.
//
// The allocation validator ensures that the rows written for a source
// transaction add back up to the transaction amount. Rows that lose or
// invent money are never persisted.
package validator

import (
	"fmt"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// AllocationValidation contains the result of validating allocation rows.
type AllocationValidation struct {
	// Valid is true if the rows sum to the source amount within tolerance
	Valid bool

	// RowsSum is the sum of all rows, remainder included
	RowsSum decimal.Decimal

	// Expected is the source transaction amount
	Expected decimal.Decimal

	// Difference is RowsSum minus Expected
	Difference decimal.Decimal

	// Reason explains why validation failed (empty if valid)
	Reason string
}

// ValidateAllocations checks that rows sum to amount. A difference up to
// tolerance is accepted; pass ledger.Cent to allow one cent of rounding.
func ValidateAllocations(rows []ledger.Allocation, amount, tolerance decimal.Decimal) *AllocationValidation {
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Amount)
	}
	sum = ledger.RoundCents(sum)
	expected := ledger.RoundCents(amount)
	diff := sum.Sub(expected)

	result := &AllocationValidation{
		Valid:      true,
		RowsSum:    sum,
		Expected:   expected,
		Difference: diff,
	}
	if len(rows) == 0 {
		result.Valid = false
		result.Reason = "no allocation rows"
		return result
	}
	if diff.Abs().LessThanOrEqual(tolerance) {
		return result
	}

	result.Valid = false
	if diff.IsNegative() {
		result.Reason = fmt.Sprintf("rows (%s) are less than the amount (%s) by %s",
			sum.StringFixed(2), expected.StringFixed(2), diff.Neg().StringFixed(2))
	} else {
		result.Reason = fmt.Sprintf("rows (%s) exceed the amount (%s) by %s",
			sum.StringFixed(2), expected.StringFixed(2), diff.StringFixed(2))
	}
	return result
}
