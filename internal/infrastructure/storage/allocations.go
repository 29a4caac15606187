package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/charter-reconciler/internal/domain/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaveAllocations writes the allocation rows of a source transaction. The
// allocation revision of the source is bumped with a compare-and-set so two
// writers cannot both allocate the same deposit. With recompute the previous
// rows are replaced in the same database transaction.
func (s *Storage) SaveAllocations(ctx context.Context, sourceTransactionID string, rows []ledger.Allocation, recompute bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			linked   sql.NullString
			amount   decimal.NullDecimal
			revision int
		)
		err := tx.QueryRowContext(ctx,
			s.q(`SELECT business_record_id, amount, allocation_revision FROM transactions WHERE id = ?`),
			sourceTransactionID,
		).Scan(&linked, &amount, &revision)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("transaction %s: %w", sourceTransactionID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		if linked.Valid {
			return fmt.Errorf("transaction %s: %w", sourceTransactionID, ErrAlreadyLinked)
		}
		if revision > 0 && !recompute {
			return fmt.Errorf("transaction %s: %w", sourceTransactionID, ErrAlreadyAllocated)
		}

		if !amount.Valid {
			return fmt.Errorf("transaction %s has no amount: %w", sourceTransactionID, ErrUnbalanced)
		}
		if v := validator.ValidateAllocations(rows, amount.Decimal, ledger.Cent); !v.Valid {
			return fmt.Errorf("transaction %s: %s: %w", sourceTransactionID, v.Reason, ErrUnbalanced)
		}

		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE transactions SET allocation_revision = ?
			WHERE id = ? AND allocation_revision = ? AND business_record_id IS NULL
		`), revision+1, sourceTransactionID, revision)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("transaction %s: %w", sourceTransactionID, ErrConcurrentUpdate)
		}

		if revision > 0 {
			if _, err := tx.ExecContext(ctx,
				s.q(`DELETE FROM allocations WHERE source_transaction_id = ?`),
				sourceTransactionID,
			); err != nil {
				return fmt.Errorf("failed to delete previous allocations: %w", err)
			}
		}

		insert := s.q(`
			INSERT INTO allocations
			(id, source_transaction_id, target_business_record_id, allocated_amount,
			 method, is_remainder, needs_review, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		now := s.now()
		for _, r := range rows {
			id := r.ID
			if id == "" {
				id = uuid.NewString()
			}
			_, err := tx.ExecContext(ctx, insert,
				id,
				sourceTransactionID,
				nullString(r.TargetBusinessRecordID),
				ledger.RoundCents(r.Amount).StringFixed(2),
				r.Method,
				r.IsRemainder,
				r.NeedsReview,
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert allocation: %w", err)
			}
		}

		s.logger.Debug("saved allocations",
			"transaction_id", sourceTransactionID,
			"rows", len(rows),
			"revision", revision+1)
		return nil
	})
}

// ListAllocations returns the rows of a source transaction, remainder last.
func (s *Storage) ListAllocations(ctx context.Context, sourceTransactionID string) ([]ledger.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT a.id, a.source_transaction_id, a.target_business_record_id, a.allocated_amount,
		       a.method, a.is_remainder, a.needs_review, a.created_at
		FROM allocations a
		LEFT JOIN business_records r ON r.id = a.target_business_record_id
		WHERE a.source_transaction_id = ?
		ORDER BY CASE WHEN a.is_remainder THEN 1 ELSE 0 END, r.record_date, r.business_key, a.id
	`), sourceTransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var allocations []ledger.Allocation
	for rows.Next() {
		var (
			a      ledger.Allocation
			target sql.NullString
		)
		if err := rows.Scan(
			&a.ID,
			&a.SourceTransactionID,
			&target,
			&a.Amount,
			&a.Method,
			&a.IsRemainder,
			&a.NeedsReview,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		a.TargetBusinessRecordID = target.String
		a.Amount = ledger.RoundCents(a.Amount)
		a.CreatedAt = a.CreatedAt.UTC()
		allocations = append(allocations, a)
	}

	return allocations, rows.Err()
}
