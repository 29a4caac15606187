package matcher

import (
	"errors"
	"fmt"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// MatchType names the signal that produced a candidate.
type MatchType string

const (
	MatchTypeHint      MatchType = "hint"
	MatchTypeExact     MatchType = "exact_amount_date"
	MatchTypeTolerance MatchType = "amount_date_tolerance"
)

// Valid reports whether t is a known match type.
func (t MatchType) Valid() bool {
	switch t {
	case MatchTypeHint, MatchTypeExact, MatchTypeTolerance:
		return true
	}
	return false
}

// Tier is the coarse confidence class of a scored candidate.
type Tier string

const (
	TierStrong Tier = "strong"
	TierWeak   Tier = "weak"
)

// Config holds matcher configuration
type Config struct {
	DateWindowDays       int             // exact stage window (default: 2)
	ToleranceWindowDays  int             // tolerance stage window (default: 14)
	AmountEpsilon        decimal.Decimal // exact stage bound, strict (default: 0.01)
	AmountTolerance      decimal.Decimal // tolerance stage bound, inclusive (default: 1.00)
	MaxCandidates        int             // tolerance stage cap (default: 5)
	DatePenaltyPerDay    float64         // exact score penalty (default: 0.02)
	StrongScoreThreshold float64         // default: 0.9
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		DateWindowDays:       2,
		ToleranceWindowDays:  14,
		AmountEpsilon:        decimal.New(1, -2),
		AmountTolerance:      decimal.NewFromInt(1),
		MaxCandidates:        5,
		DatePenaltyPerDay:    0.02,
		StrongScoreThreshold: 0.9,
	}
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid matcher config")

// Validate rejects configurations the generator cannot run with.
func (c Config) Validate() error {
	switch {
	case c.DateWindowDays < 0:
		return fmt.Errorf("%w: date_window_days must be >= 0", ErrInvalidConfig)
	case c.ToleranceWindowDays < 0:
		return fmt.Errorf("%w: tolerance_window_days must be >= 0", ErrInvalidConfig)
	case c.AmountEpsilon.IsNegative():
		return fmt.Errorf("%w: amount_epsilon must be >= 0", ErrInvalidConfig)
	case c.AmountTolerance.IsNegative():
		return fmt.Errorf("%w: amount_tolerance must be >= 0", ErrInvalidConfig)
	case c.MaxCandidates < 1:
		return fmt.Errorf("%w: max_candidates_per_transaction must be >= 1", ErrInvalidConfig)
	case c.DatePenaltyPerDay < 0:
		return fmt.Errorf("%w: date_penalty_per_day must be >= 0", ErrInvalidConfig)
	case c.StrongScoreThreshold < 0 || c.StrongScoreThreshold > 1:
		return fmt.Errorf("%w: strong_score_threshold must be within [0,1]", ErrInvalidConfig)
	}
	return nil
}

// Candidate is a possible business record for a transaction. Score and Tier
// are zero until the candidate passes through Score.
type Candidate struct {
	TransactionID  string
	Record         ledger.BusinessRecord
	MatchType      MatchType
	AmountDiff     decimal.Decimal // absolute
	DateOffsetDays int
	Score          float64
	Tier           Tier
}

// IsStrong reports whether the candidate was scored into the strong tier.
func (c Candidate) IsStrong() bool {
	return c.Tier == TierStrong
}
