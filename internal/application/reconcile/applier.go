package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/eshaffer321/charter-reconciler/internal/domain/allocator"
	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/charter-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/storage"
)

// Action is what the applier decided to do with a transaction.
type Action string

const (
	ActionLink     Action = "link"
	ActionAllocate Action = "allocate"
	ActionSkip     Action = "skip"
)

// Decision is the pure result of Decide.
type Decision struct {
	Action         Action
	Reason         Reason             // set for ActionSkip
	AmbiguousCount int                // surviving candidates when ambiguous
	Candidate      *matcher.Candidate // set for ActionLink
	Targets        []matcher.Candidate
	CandidateCount int // scored candidates before filtering
}

// Applier turns scored candidates into links or allocations. One Applier
// serves one run: in dry-run mode it remembers which records the run has
// already claimed so exclusivity is simulated without writes.
type Applier struct {
	store   Store
	config  Config
	logger  *slog.Logger
	claimed map[string]string // record id -> transaction id
}

// NewApplier creates an applier for a single run.
func NewApplier(store Store, config Config, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{
		store:   store,
		config:  config,
		logger:  logger,
		claimed: make(map[string]string),
	}
}

// Decide filters scored candidates to those safe to act on and picks an
// action. It performs no I/O.
func (a *Applier) Decide(tx *ledger.Transaction, scored []matcher.Candidate) Decision {
	d := Decision{CandidateCount: len(scored)}

	if !tx.HasRequiredFields() {
		d.Action, d.Reason = ActionSkip, ReasonMissingFields
		return d
	}

	seen := make(map[string]bool)
	var survivors []matcher.Candidate
	for _, c := range scored {
		if !a.config.allows(c.MatchType) || !c.IsStrong() {
			continue
		}
		if c.MatchType != matcher.MatchTypeHint && !a.recheck(tx, c) {
			continue
		}
		if seen[c.Record.ID] {
			continue
		}
		seen[c.Record.ID] = true
		survivors = append(survivors, c)
	}

	switch {
	case len(survivors) == 0:
		d.Action, d.Reason = ActionSkip, ReasonNoStrongCandidates
	case len(survivors) == 1:
		d.Action = ActionLink
		d.Candidate = &survivors[0]
	case allHints(survivors) && len(survivors) >= a.config.Allocator.MinTargets:
		d.Action = ActionAllocate
		d.Targets = survivors
	default:
		d.Action, d.Reason = ActionSkip, ReasonAmbiguousCandidates
		d.AmbiguousCount = len(survivors)
	}
	return d
}

// recheck re-applies the amount, date and placeholder bounds of the
// candidate's stage against the transaction itself.
func (a *Applier) recheck(tx *ledger.Transaction, c matcher.Candidate) bool {
	if c.Record.Placeholder {
		return false
	}
	diff := c.Record.AmountDue.Sub(*tx.Amount).Abs()
	offset := ledger.DaysBetween(*tx.Date, c.Record.Date)

	cfg := a.config.Matcher
	switch c.MatchType {
	case matcher.MatchTypeExact:
		return diff.LessThan(cfg.AmountEpsilon) && offset <= cfg.DateWindowDays
	case matcher.MatchTypeTolerance:
		return diff.LessThanOrEqual(cfg.AmountTolerance) && offset <= cfg.ToleranceWindowDays
	}
	return false
}

func allHints(cands []matcher.Candidate) bool {
	for _, c := range cands {
		if c.MatchType != matcher.MatchTypeHint {
			return false
		}
	}
	return true
}

// Apply carries out a decision. Store failures never escape: they become a
// skipped outcome carrying the cause.
func (a *Applier) Apply(ctx context.Context, tx *ledger.Transaction, d Decision, dryRun bool) Outcome {
	var o Outcome
	switch d.Action {
	case ActionLink:
		o = a.link(ctx, tx, *d.Candidate, dryRun)
	case ActionAllocate:
		o = a.allocate(ctx, tx, d.Targets, dryRun)
	default:
		o = skipped(tx, d.Reason, dryRun)
		o.AmbiguousCount = d.AmbiguousCount
	}
	o.CandidateCount = d.CandidateCount
	return o
}

func (a *Applier) link(ctx context.Context, tx *ledger.Transaction, c matcher.Candidate, dryRun bool) Outcome {
	score := c.Score
	o := Outcome{
		TransactionID: tx.ID,
		BusinessKey:   c.Record.BusinessKey,
		MatchType:     c.MatchType,
		Score:         &score,
		DryRun:        dryRun,
	}

	// Re-applying an existing link is a no-op.
	if tx.IsLinked() {
		if tx.BusinessRecordID == c.Record.ID {
			o.Status = StatusApplied
			return o
		}
		o.Status, o.Reason = StatusSkipped, ReasonAlreadyLinked
		return o
	}

	if dryRun {
		holder := c.Record.LinkedTransactionID
		if holder == "" {
			holder = a.claimed[c.Record.ID]
		}
		if holder != "" && holder != tx.ID {
			o.Status, o.Reason = StatusSkipped, ReasonConflict
			return o
		}
		a.claimed[c.Record.ID] = tx.ID
		o.Status = StatusApplied
		return o
	}

	err := a.store.ApplyLink(ctx, storage.Link{
		TransactionID:    tx.ID,
		BusinessRecordID: c.Record.ID,
		MatchType:        string(c.MatchType),
		Score:            c.Score,
	})
	if err != nil {
		o.Status, o.Reason = StatusSkipped, linkFailure(err)
		if o.Reason == ReasonError {
			o.Err = err
		}
		return o
	}

	o.Status = StatusApplied
	return o
}

func linkFailure(err error) Reason {
	switch {
	case errors.Is(err, storage.ErrRecordLinked):
		return ReasonConflict
	case errors.Is(err, storage.ErrAlreadyLinked):
		return ReasonAlreadyLinked
	case errors.Is(err, storage.ErrAlreadyAllocated):
		return ReasonAlreadyAllocated
	}
	return ReasonError
}

// allocate spreads a transaction that references several records across
// them.
func (a *Applier) allocate(ctx context.Context, tx *ledger.Transaction, cands []matcher.Candidate, dryRun bool) Outcome {
	targets := make([]allocator.Target, 0, len(cands))
	for _, c := range cands {
		targets = append(targets, allocator.Target{
			RecordID:    c.Record.ID,
			BusinessKey: c.Record.BusinessKey,
			OpenAmount:  c.Record.OpenAmount,
		})
	}
	o := writeAllocation(ctx, a.store, tx, targets, a.config.Allocator, ledger.MethodMultiReference, false, dryRun)
	o.MatchType = matcher.MatchTypeHint
	return o
}

// writeAllocation runs the proportional allocator and, outside dry-run,
// persists the rows with a compare-and-set on the source transaction.
func writeAllocation(
	ctx context.Context,
	store Store,
	tx *ledger.Transaction,
	targets []allocator.Target,
	config allocator.Config,
	method string,
	recompute bool,
	dryRun bool,
) Outcome {
	o := Outcome{
		TransactionID: tx.ID,
		DryRun:        dryRun,
	}

	result, err := allocator.Allocate(*tx.Amount, targets, config)
	switch {
	case errors.Is(err, allocator.ErrInsufficientCandidates):
		o.Status, o.Reason = StatusSkipped, ReasonInsufficientCandidates
		return o
	case errors.Is(err, allocator.ErrNonPositiveDeposit):
		o.Status, o.Reason = StatusSkipped, ReasonInvalidAmount
		return o
	case err != nil:
		o.Status, o.Reason, o.Err = StatusSkipped, ReasonError, err
		return o
	}

	rows := result.Rows(tx.ID, method)
	for _, alloc := range result.Allocations {
		o.BusinessKeys = append(o.BusinessKeys, alloc.BusinessKey)
	}
	o.Allocations = rows
	o.NeedsReview = result.HasRemainder()

	if !dryRun {
		if err := store.SaveAllocations(ctx, tx.ID, rows, recompute); err != nil {
			o.Allocations = nil
			o.Status = StatusSkipped
			switch {
			case errors.Is(err, storage.ErrAlreadyAllocated):
				o.Reason = ReasonAlreadyAllocated
			case errors.Is(err, storage.ErrAlreadyLinked):
				o.Reason = ReasonAlreadyLinked
			case errors.Is(err, storage.ErrConcurrentUpdate):
				o.Reason = ReasonConflict
			default:
				o.Reason, o.Err = ReasonError, err
			}
			return o
		}
	}

	o.Status = StatusAllocated
	return o
}
