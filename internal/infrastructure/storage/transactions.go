package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, txn_date, amount, method, memo, external_reference, account,
	content_hash, business_record_id, match_type, match_score, linked_at, allocation_revision`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*ledger.Transaction, error) {
	var (
		t                         ledger.Transaction
		date, linkedAt            sql.NullTime
		amount                    decimal.NullDecimal
		hash, recordID, matchType sql.NullString
		score                     sql.NullFloat64
	)
	err := row.Scan(
		&t.ID,
		&date,
		&amount,
		&t.Method,
		&t.Memo,
		&t.ExternalReference,
		&t.Account,
		&hash,
		&recordID,
		&matchType,
		&score,
		&linkedAt,
		&t.AllocationRevision,
	)
	if err != nil {
		return nil, err
	}

	if date.Valid {
		d := ledger.DateOnly(date.Time)
		t.Date = &d
	}
	if amount.Valid {
		a := ledger.RoundCents(amount.Decimal)
		t.Amount = &a
	}
	if linkedAt.Valid {
		l := linkedAt.Time.UTC()
		t.LinkedAt = &l
	}
	t.ContentHash = hash.String
	t.BusinessRecordID = recordID.String
	t.MatchType = matchType.String
	t.MatchScore = score.Float64

	return &t, nil
}

// InsertTransaction stores a new transaction, assigning an ID when empty.
func (s *Storage) InsertTransaction(ctx context.Context, tx *ledger.Transaction) (bool, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	query := `
	INSERT INTO transactions
	(id, txn_date, amount, method, memo, external_reference, account, content_hash, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (content_hash) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, s.q(query),
		tx.ID,
		nullDate(tx.Date),
		nullDecimal(tx.Amount),
		tx.Method,
		tx.Memo,
		tx.ExternalReference,
		tx.Account,
		nullString(tx.ContentHash),
		s.now(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetTransaction retrieves a transaction by ID
func (s *Storage) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

	t, err := scanTransaction(s.db.QueryRowContext(ctx, s.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return t, err
}

// ListUnmatchedTransactions returns unlinked transactions ordered by date
// (undated last) then id.
func (s *Storage) ListUnmatchedTransactions(ctx context.Context, filter TransactionFilter) ([]*ledger.Transaction, error) {
	where := []string{"business_record_id IS NULL"}
	var args []any

	if !filter.IncludeAllocated {
		where = append(where, "allocation_revision = 0")
	}
	if len(filter.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(filter.IDs))+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	if len(filter.Methods) > 0 {
		where = append(where, "method IN ("+placeholders(len(filter.Methods))+")")
		for _, m := range filter.Methods {
			args = append(args, m)
		}
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY CASE WHEN txn_date IS NULL THEN 1 ELSE 0 END, txn_date, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txs []*ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}

	return txs, rows.Err()
}

// ApplyLink sets the direct link of a transaction in a single database
// transaction. It fails with ErrAlreadyLinked or ErrAlreadyAllocated when
// the transaction is no longer unmatched, and with ErrRecordLinked when
// another transaction already holds the record.
func (s *Storage) ApplyLink(ctx context.Context, link Link) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current sql.NullString
		var revision int
		err := tx.QueryRowContext(ctx,
			s.q(`SELECT business_record_id, allocation_revision FROM transactions WHERE id = ?`),
			link.TransactionID,
		).Scan(&current, &revision)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("transaction %s: %w", link.TransactionID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if current.Valid {
			return fmt.Errorf("transaction %s linked to %s: %w", link.TransactionID, current.String, ErrAlreadyLinked)
		}
		if revision > 0 {
			return fmt.Errorf("transaction %s: %w", link.TransactionID, ErrAlreadyAllocated)
		}

		var exists int
		err = tx.QueryRowContext(ctx,
			s.q(`SELECT COUNT(*) FROM business_records WHERE id = ?`),
			link.BusinessRecordID,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("business record %s: %w", link.BusinessRecordID, ErrNotFound)
		}

		var holder string
		err = tx.QueryRowContext(ctx,
			s.q(`SELECT id FROM transactions WHERE business_record_id = ? AND id <> ?`),
			link.BusinessRecordID, link.TransactionID,
		).Scan(&holder)
		if err == nil {
			return fmt.Errorf("business record %s held by %s: %w", link.BusinessRecordID, holder, ErrRecordLinked)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE transactions
			SET business_record_id = ?, match_type = ?, match_score = ?, linked_at = ?
			WHERE id = ? AND business_record_id IS NULL AND allocation_revision = 0
		`), link.BusinessRecordID, link.MatchType, link.Score, s.now(), link.TransactionID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("business record %s: %w", link.BusinessRecordID, ErrRecordLinked)
			}
			return err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("transaction %s: %w", link.TransactionID, ErrAlreadyLinked)
		}
		return nil
	})
}

// ClearLink removes the link between a transaction and businessRecordID.
// The update only happens while the transaction still holds that record.
func (s *Storage) ClearLink(ctx context.Context, transactionID, businessRecordID string) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE transactions
		SET business_record_id = NULL, match_type = NULL, match_score = NULL, linked_at = NULL
		WHERE id = ? AND business_record_id = ?
	`), transactionID, businessRecordID)
	if err != nil {
		return fmt.Errorf("failed to clear link: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if _, err := s.GetTransaction(ctx, transactionID); err != nil {
		return err
	}
	return fmt.Errorf("transaction %s, record %s: %w", transactionID, businessRecordID, ErrNotLinked)
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ledger.DateOnly(*t)
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return ledger.RoundCents(*d).StringFixed(2)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
