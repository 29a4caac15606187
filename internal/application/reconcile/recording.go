package reconcile

import (
	"context"

	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/storage"
)

// Recording and audit trail functions for the engine. Audit failures are
// logged and never change an outcome.

// record persists an outcome to the store and forwards it to the sink
func (e *Engine) record(ctx context.Context, runID string, o Outcome) {
	ctx = context.WithoutCancel(ctx)

	rec := &storage.OutcomeRecord{
		RunID:          runID,
		TransactionID:  o.TransactionID,
		Status:         string(o.Status),
		Reason:         o.ReasonText(),
		BusinessKey:    string(o.BusinessKey),
		MatchType:      string(o.MatchType),
		Score:          o.Score,
		CandidateCount: o.CandidateCount,
		DryRun:         o.DryRun,
		Error:          o.ErrorText(),
	}
	if rec.BusinessKey == "" && len(o.BusinessKeys) > 0 {
		rec.BusinessKey = joinKeys(o)
	}

	if err := e.store.SaveOutcome(ctx, rec); err != nil {
		e.logger.Error("Failed to save outcome", "transaction_id", o.TransactionID, "error", err)
	}
	if e.sink != nil {
		if err := e.sink.Record(ctx, runID, o); err != nil {
			e.logger.Error("Failed to write outcome to sink", "transaction_id", o.TransactionID, "error", err)
		}
	}

	e.logOutcome(o)
}

func (e *Engine) logOutcome(o Outcome) {
	switch {
	case o.Reason == ReasonError:
		e.logger.Warn("Transaction skipped after error",
			"transaction_id", o.TransactionID,
			"error", o.Err)
	case o.Status == StatusSkipped:
		e.logger.Debug("Transaction skipped",
			"transaction_id", o.TransactionID,
			"reason", o.ReasonText())
	case o.NeedsReview:
		e.logger.Warn("Deposit allocated with remainder for review",
			"transaction_id", o.TransactionID,
			"targets", len(o.BusinessKeys),
			"dry_run", o.DryRun)
	default:
		e.logger.Info("Transaction "+string(o.Status),
			"transaction_id", o.TransactionID,
			"business_key", joinKeys(o),
			"match_type", o.MatchType,
			"dry_run", o.DryRun)
	}
}

// finishRun writes the run counters. An empty status lets the store derive
// it from the error count.
func (e *Engine) finishRun(ctx context.Context, run *storage.Run, result *Result, status string) {
	run.Processed = result.Processed
	run.Applied = result.Applied
	run.Allocated = result.Allocated
	run.Skipped = result.SkippedTotal()
	run.Errored = result.Errored()
	if status != "" {
		run.Status = status
	}

	if err := e.store.CompleteRun(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Error("Failed to complete run", "run_id", run.ID, "error", err)
	}

	e.logger.Info("Run finished",
		"run_id", run.ID,
		"kind", run.Kind,
		"processed", result.Processed,
		"applied", result.Applied,
		"allocated", result.Allocated,
		"skipped", run.Skipped,
		"errored", run.Errored)
}

func joinKeys(o Outcome) string {
	if o.BusinessKey != "" {
		return string(o.BusinessKey)
	}
	s := ""
	for i, k := range o.BusinessKeys {
		if i > 0 {
			s += ","
		}
		s += string(k)
	}
	return s
}
