package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// StartRun records the start of a run
func (s *Storage) StartRun(ctx context.Context, kind string, dryRun bool) (*Run, error) {
	run := &Run{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      kind,
		DryRun:    dryRun,
		StartedAt: s.now(),
		Status:    RunStatusRunning,
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO reconcile_runs (id, kind, dry_run, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`), run.ID, run.Kind, run.DryRun, run.StartedAt, run.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	return run, nil
}

// CompleteRun records the counters and final status of a run. An empty
// status is derived from the error count.
func (s *Storage) CompleteRun(ctx context.Context, run *Run) error {
	completed := s.now()
	run.CompletedAt = &completed
	if run.Status == "" || run.Status == RunStatusRunning {
		run.Status = RunStatusCompleted
		if run.Errored > 0 {
			run.Status = RunStatusCompletedWithErrors
		}
	}

	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE reconcile_runs
		SET completed_at = ?, processed = ?, applied = ?, allocated = ?,
		    skipped = ?, errored = ?, status = ?
		WHERE id = ?
	`), completed, run.Processed, run.Applied, run.Allocated, run.Skipped, run.Errored, run.Status, run.ID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// SaveOutcome appends an outcome to a run
func (s *Storage) SaveOutcome(ctx context.Context, o *OutcomeRecord) error {
	if o.ID == "" {
		o.ID = uuid.Must(uuid.NewV7()).String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}

	var score any
	if o.Score != nil {
		score = *o.Score
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO match_outcomes
		(id, run_id, transaction_id, status, reason, business_key, match_type,
		 score, candidate_count, dry_run, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		o.ID,
		o.RunID,
		o.TransactionID,
		o.Status,
		o.Reason,
		o.BusinessKey,
		o.MatchType,
		score,
		o.CandidateCount,
		o.DryRun,
		o.Error,
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save outcome for %s: %w", o.TransactionID, err)
	}
	return nil
}

const runColumns = `id, kind, dry_run, started_at, completed_at, processed, applied,
	allocated, skipped, errored, status`

func scanRun(row rowScanner) (*Run, error) {
	var (
		r         Run
		completed sql.NullTime
	)
	err := row.Scan(
		&r.ID,
		&r.Kind,
		&r.DryRun,
		&r.StartedAt,
		&completed,
		&r.Processed,
		&r.Applied,
		&r.Allocated,
		&r.Skipped,
		&r.Errored,
		&r.Status,
	)
	if err != nil {
		return nil, err
	}
	r.StartedAt = r.StartedAt.UTC()
	if completed.Valid {
		c := completed.Time.UTC()
		r.CompletedAt = &c
	}
	return &r, nil
}

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+runColumns+` FROM reconcile_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+runColumns+` FROM reconcile_runs WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListOutcomes returns the outcomes of a run in insertion order
func (s *Storage) ListOutcomes(ctx context.Context, runID string) ([]OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, run_id, transaction_id, status, reason, business_key, match_type,
		       score, candidate_count, dry_run, error, created_at
		FROM match_outcomes
		WHERE run_id = ?
		ORDER BY created_at, id
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var outcomes []OutcomeRecord
	for rows.Next() {
		var (
			o     OutcomeRecord
			score sql.NullFloat64
		)
		if err := rows.Scan(
			&o.ID,
			&o.RunID,
			&o.TransactionID,
			&o.Status,
			&o.Reason,
			&o.BusinessKey,
			&o.MatchType,
			&score,
			&o.CandidateCount,
			&o.DryRun,
			&o.Error,
			&o.CreatedAt,
		); err != nil {
			return nil, err
		}
		if score.Valid {
			v := score.Float64
			o.Score = &v
		}
		o.CreatedAt = o.CreatedAt.UTC()
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// GetStats returns aggregate statistics
func (s *Storage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(business_record_id),
			COALESCE(SUM(CASE WHEN allocation_revision > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN business_record_id IS NULL AND allocation_revision = 0 THEN 1 ELSE 0 END), 0)
		FROM transactions
	`).Scan(
		&stats.Transactions,
		&stats.LinkedTransactions,
		&stats.AllocatedDeposits,
		&stats.UnmatchedTransactions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM business_records`).Scan(&stats.BusinessRecords); err != nil {
		return nil, fmt.Errorf("failed to count business records: %w", err)
	}

	err = s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN needs_review = ? THEN 1 ELSE 0 END), 0)
		FROM allocations
	`), true).Scan(&stats.Allocations, &stats.NeedsReview)
	if err != nil {
		return nil, fmt.Errorf("failed to count allocations: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reconcile_runs`).Scan(&stats.Runs); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	return stats, nil
}
