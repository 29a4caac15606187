package reconcile

import (
	"context"
	"fmt"

	"github.com/eshaffer321/charter-reconciler/internal/domain/allocator"
	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/storage"
	"github.com/shopspring/decimal"
)

// AllocateDeposits splits each selected deposit across the non-placeholder
// records dated within the allocation window that still have an open amount.
// Targets are loaded fresh per deposit so earlier deposits in the batch
// reduce what later ones see.
func (e *Engine) AllocateDeposits(ctx context.Context, opts AllocateOptions) (*Result, error) {
	filter := storage.TransactionFilter{
		IDs:              opts.TransactionIDs,
		IncludeAllocated: true,
	}
	if len(opts.TransactionIDs) == 0 {
		filter.Methods = opts.Methods
		if len(filter.Methods) == 0 {
			filter.Methods = e.config.DepositMethods
		}
	}

	deposits, err := e.store.ListUnmatchedTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load deposits: %w", err)
	}

	run, err := e.store.StartRun(ctx, storage.RunKindAllocate, opts.DryRun)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Starting allocation run",
		"run_id", run.ID,
		"deposits", len(deposits),
		"dry_run", opts.DryRun,
		"recompute", opts.Recompute)

	result := newResult(run.ID)
	for _, deposit := range deposits {
		if err := ctx.Err(); err != nil {
			e.finishRun(ctx, run, result, storage.RunStatusCancelled)
			return result, err
		}

		outcome := e.allocateOne(ctx, deposit, opts)
		e.record(ctx, run.ID, outcome)
		result.add(outcome)
	}

	e.finishRun(ctx, run, result, "")
	return result, nil
}

func (e *Engine) allocateOne(ctx context.Context, deposit *ledger.Transaction, opts AllocateOptions) Outcome {
	if !deposit.HasRequiredFields() {
		return skipped(deposit, ReasonMissingFields, opts.DryRun)
	}
	if !deposit.Amount.IsPositive() {
		return skipped(deposit, ReasonInvalidAmount, opts.DryRun)
	}
	if deposit.IsAllocated() && !opts.Recompute {
		return skipped(deposit, ReasonAlreadyAllocated, opts.DryRun)
	}

	targets, err := e.loadTargets(ctx, deposit)
	if err != nil {
		o := skipped(deposit, ReasonError, opts.DryRun)
		o.Err = err
		return o
	}

	return writeAllocation(ctx, e.store, deposit, targets, e.config.Allocator,
		ledger.MethodProportional, opts.Recompute, opts.DryRun)
}

// loadTargets returns the records a deposit may pay. When the deposit was
// allocated before, its own rows are added back so a recompute sees the
// open amounts as they were before this deposit.
func (e *Engine) loadTargets(ctx context.Context, deposit *ledger.Transaction) ([]allocator.Target, error) {
	day := ledger.DateOnly(*deposit.Date)
	window := e.config.AllocationWindowDays
	records, err := e.store.ListRecordsInWindow(ctx, day.AddDate(0, 0, -window), day.AddDate(0, 0, window), false)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocation targets: %w", err)
	}

	previous := make(map[string]decimal.Decimal)
	if deposit.IsAllocated() {
		rows, err := e.store.ListAllocations(ctx, deposit.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load previous allocations: %w", err)
		}
		for _, r := range rows {
			if r.TargetBusinessRecordID != "" {
				previous[r.TargetBusinessRecordID] = previous[r.TargetBusinessRecordID].Add(r.Amount)
			}
		}
	}

	targets := make([]allocator.Target, 0, len(records))
	for _, r := range records {
		targets = append(targets, allocator.Target{
			RecordID:    r.ID,
			BusinessKey: r.BusinessKey,
			OpenAmount:  r.OpenAmount.Add(previous[r.ID]),
		})
	}
	return targets, nil
}
