// Package allocator spreads one deposit across several business records in
// proportion to what each still owes.
//
//	share_i = round(deposit * open_i / sum(open), 2)
//
// Rounding drift up to the remainder tolerance is pushed onto the largest
// share so the shares sum to the deposit exactly. Larger drift is reported as
// a remainder that needs review.
package allocator

import (
	"errors"
	"fmt"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientCandidates is returned when fewer than MinTargets
	// targets have a positive open amount.
	ErrInsufficientCandidates = errors.New("insufficient allocation candidates")
	// ErrNonPositiveDeposit is returned for a zero or negative deposit.
	ErrNonPositiveDeposit = errors.New("deposit amount must be positive")
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid allocator config")
)

// Config controls allocation.
type Config struct {
	MinTargets         int             // default: 2
	RemainderTolerance decimal.Decimal // default: 0.05
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MinTargets:         2,
		RemainderTolerance: decimal.New(5, -2),
	}
}

// Validate rejects configurations Allocate cannot honour.
func (c Config) Validate() error {
	if c.MinTargets < 2 {
		return fmt.Errorf("%w: min_targets must be >= 2", ErrInvalidConfig)
	}
	if c.RemainderTolerance.IsNegative() {
		return fmt.Errorf("%w: remainder_tolerance must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Target is a business record competing for a share of the deposit.
type Target struct {
	RecordID    string
	BusinessKey ledger.BusinessKey
	OpenAmount  decimal.Decimal
}

// Allocation is the share assigned to one target.
type Allocation struct {
	RecordID    string
	BusinessKey ledger.BusinessKey
	OpenAmount  decimal.Decimal
	Amount      decimal.Decimal
}

// Result contains the allocation results.
type Result struct {
	Deposit     decimal.Decimal
	TotalOpen   decimal.Decimal
	Allocations []Allocation
	// Remainder is deposit minus the sum of Allocations. It is zero when the
	// rounding drift was absorbed.
	Remainder decimal.Decimal
	Absorbed  decimal.Decimal
}

// HasRemainder reports whether a remainder row must be recorded.
func (r *Result) HasRemainder() bool {
	return !r.Remainder.IsZero()
}

// TotalAllocated returns the sum of the target shares.
func (r *Result) TotalAllocated() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// Rows converts the result into ledger allocation rows for the source
// transaction, with a trailing remainder row when needed. IDs and timestamps
// are left for storage to assign.
func (r *Result) Rows(sourceTransactionID, method string) []ledger.Allocation {
	rows := make([]ledger.Allocation, 0, len(r.Allocations)+1)
	for _, a := range r.Allocations {
		rows = append(rows, ledger.Allocation{
			SourceTransactionID:    sourceTransactionID,
			TargetBusinessRecordID: a.RecordID,
			Amount:                 a.Amount,
			Method:                 method,
		})
	}
	if r.HasRemainder() {
		rows = append(rows, ledger.Allocation{
			SourceTransactionID: sourceTransactionID,
			Amount:              r.Remainder,
			Method:              method,
			IsRemainder:         true,
			NeedsReview:         true,
		})
	}
	return rows
}

// Allocate distributes deposit across targets proportionally to their open
// amounts. Targets with no open amount are ignored.
func Allocate(deposit decimal.Decimal, targets []Target, config Config) (*Result, error) {
	if !deposit.IsPositive() {
		return nil, ErrNonPositiveDeposit
	}

	// Step 1: Keep targets that still owe something
	var eligible []Target
	totalOpen := decimal.Zero
	for _, t := range targets {
		if !t.OpenAmount.IsPositive() {
			continue
		}
		eligible = append(eligible, t)
		totalOpen = totalOpen.Add(t.OpenAmount)
	}

	if len(eligible) < config.MinTargets || !totalOpen.IsPositive() {
		return nil, fmt.Errorf("%w: %d eligible, need %d", ErrInsufficientCandidates, len(eligible), config.MinTargets)
	}

	// Step 2: Proportional shares rounded to cents
	allocations := make([]Allocation, len(eligible))
	allocated := decimal.Zero
	for i, t := range eligible {
		share := ledger.RoundCents(deposit.Mul(t.OpenAmount).Div(totalOpen))
		allocations[i] = Allocation{
			RecordID:    t.RecordID,
			BusinessKey: t.BusinessKey,
			OpenAmount:  t.OpenAmount,
			Amount:      share,
		}
		allocated = allocated.Add(share)
	}

	result := &Result{
		Deposit:     deposit,
		TotalOpen:   totalOpen,
		Allocations: allocations,
		Remainder:   deposit.Sub(allocated),
		Absorbed:    decimal.Zero,
	}

	// Step 3: Fix rounding - adjust largest share if the drift is small
	if !result.Remainder.IsZero() && result.Remainder.Abs().LessThanOrEqual(config.RemainderTolerance) {
		maxIdx := 0
		for i, a := range allocations {
			if a.Amount.GreaterThan(allocations[maxIdx].Amount) {
				maxIdx = i
			}
		}
		allocations[maxIdx].Amount = allocations[maxIdx].Amount.Add(result.Remainder)
		result.Absorbed = result.Remainder
		result.Remainder = decimal.Zero
	}

	return result, nil
}
