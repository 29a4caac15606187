package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/eshaffer321/charter-reconciler/internal/domain/allocator"
	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/charter-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/storage"
)

// Store is the persistence the engine needs.
type Store interface {
	storage.TransactionRepository
	storage.BusinessRecordRepository
	storage.AllocationRepository
	storage.RunRepository
}

// Config holds engine configuration
type Config struct {
	Matcher              matcher.Config
	Allocator            allocator.Config
	AllowedMatchTypes    []matcher.MatchType
	AllocationWindowDays int
	DepositMethods       []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Matcher:              matcher.DefaultConfig(),
		Allocator:            allocator.DefaultConfig(),
		AllowedMatchTypes:    []matcher.MatchType{matcher.MatchTypeHint, matcher.MatchTypeExact},
		AllocationWindowDays: 14,
		DepositMethods:       []string{"batch_deposit"},
	}
}

// ErrInvalidConfig is returned by NewEngine for unusable configuration.
var ErrInvalidConfig = errors.New("invalid reconcile config")

// Validate checks every section of the configuration.
func (c Config) Validate() error {
	if err := c.Matcher.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Allocator.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if len(c.AllowedMatchTypes) == 0 {
		return fmt.Errorf("%w: no allowed match types", ErrInvalidConfig)
	}
	for _, t := range c.AllowedMatchTypes {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown match type %q", ErrInvalidConfig, t)
		}
	}
	if c.AllocationWindowDays < 0 {
		return fmt.Errorf("%w: allocation window must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func (c Config) allows(t matcher.MatchType) bool {
	for _, allowed := range c.AllowedMatchTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// Status is the terminal state of one processed transaction.
type Status string

const (
	StatusApplied   Status = "applied"
	StatusAllocated Status = "allocated"
	StatusSkipped   Status = "skipped"
)

// Reason explains a skipped outcome.
type Reason string

const (
	ReasonMissingFields          Reason = "missing_fields"
	ReasonNoStrongCandidates     Reason = "no_strong_candidates"
	ReasonAmbiguousCandidates    Reason = "ambiguous_candidates"
	ReasonConflict               Reason = "conflict"
	ReasonError                  Reason = "error"
	ReasonAlreadyLinked          Reason = "already_linked"
	ReasonAlreadyAllocated       Reason = "already_allocated"
	ReasonInsufficientCandidates Reason = "insufficient_candidates"
	ReasonInvalidAmount          Reason = "invalid_amount"
)

// Outcome is the result of processing one transaction. Every processed
// transaction produces exactly one.
type Outcome struct {
	TransactionID  string
	Status         Status
	Reason         Reason
	AmbiguousCount int // set with ReasonAmbiguousCandidates
	BusinessKey    ledger.BusinessKey
	BusinessKeys   []ledger.BusinessKey // allocation targets
	MatchType      matcher.MatchType
	Score          *float64
	CandidateCount int
	Allocations    []ledger.Allocation
	NeedsReview    bool // a remainder row was produced
	DryRun         bool
	Err            error
}

// ReasonText renders the reason the way reports show it, e.g.
// "ambiguous_candidates=3".
func (o Outcome) ReasonText() string {
	if o.Reason == ReasonAmbiguousCandidates && o.AmbiguousCount > 0 {
		return string(o.Reason) + "=" + strconv.Itoa(o.AmbiguousCount)
	}
	return string(o.Reason)
}

// ErrorText returns the error message, if any.
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

func skipped(tx *ledger.Transaction, reason Reason, dryRun bool) Outcome {
	return Outcome{
		TransactionID: tx.ID,
		Status:        StatusSkipped,
		Reason:        reason,
		DryRun:        dryRun,
	}
}

// LinkOptions narrows a linking run.
type LinkOptions struct {
	DryRun         bool
	TransactionIDs []string
	Methods        []string
	Limit          int
}

// AllocateOptions narrows an allocation run. Without TransactionIDs the
// deposits are chosen by Methods, falling back to the configured deposit
// methods.
type AllocateOptions struct {
	DryRun         bool
	Recompute      bool
	TransactionIDs []string
	Methods        []string
}

// Result holds run results
type Result struct {
	RunID     string
	Processed int
	Applied   int
	Allocated int
	Skipped   map[Reason]int
	Outcomes  []Outcome
}

func newResult(runID string) *Result {
	return &Result{
		RunID:   runID,
		Skipped: make(map[Reason]int),
	}
}

func (r *Result) add(o Outcome) {
	r.Processed++
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusApplied:
		r.Applied++
	case StatusAllocated:
		r.Allocated++
	default:
		r.Skipped[o.Reason]++
	}
}

// SkippedTotal returns the number of skipped transactions.
func (r *Result) SkippedTotal() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// Errored returns the number of transactions skipped because of an error.
func (r *Result) Errored() int {
	return r.Skipped[ReasonError]
}

// Sink receives every outcome in addition to the store's audit tables.
type Sink interface {
	Record(ctx context.Context, runID string, outcome Outcome) error
}

// MultiSink fans an outcome out to several sinks, returning the first error.
type MultiSink []Sink

// Record implements Sink.
func (m MultiSink) Record(ctx context.Context, runID string, outcome Outcome) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, runID, outcome); err != nil && first == nil {
			first = err
		}
	}
	return first
}
