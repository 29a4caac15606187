package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/google/uuid"
)

// recordSelect derives the open amount of each record from the allocations
// targeting it and the transactions linked to it. The unique index on
// transactions.business_record_id keeps the holder subquery to one row.
const recordSelect = `
SELECT r.id, r.business_key, r.record_date, r.amount_due, r.placeholder,
       r.amount_due
         - COALESCE((SELECT SUM(a.allocated_amount) FROM allocations a
                     WHERE a.target_business_record_id = r.id), 0)
         - COALESCE((SELECT SUM(t.amount) FROM transactions t
                     WHERE t.business_record_id = r.id), 0) AS open_amount,
       (SELECT t.id FROM transactions t WHERE t.business_record_id = r.id) AS linked_transaction_id
FROM business_records r`

func scanRecord(row rowScanner) (ledger.BusinessRecord, error) {
	var (
		rec    ledger.BusinessRecord
		key    string
		holder sql.NullString
	)
	err := row.Scan(&rec.ID, &key, &rec.Date, &rec.AmountDue, &rec.Placeholder, &rec.OpenAmount, &holder)
	if err != nil {
		return rec, err
	}
	rec.LinkedTransactionID = holder.String
	rec.BusinessKey = ledger.BusinessKey(key)
	rec.Date = ledger.DateOnly(rec.Date)
	rec.AmountDue = ledger.RoundCents(rec.AmountDue)
	rec.OpenAmount = ledger.RoundCents(rec.OpenAmount)
	return rec, nil
}

func (s *Storage) queryRecords(ctx context.Context, query string, args ...any) ([]ledger.BusinessRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query business records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []ledger.BusinessRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// InsertBusinessRecord stores a record, assigning an ID when empty.
func (s *Storage) InsertBusinessRecord(ctx context.Context, rec *ledger.BusinessRecord) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	query := `
	INSERT INTO business_records (id, business_key, record_date, amount_due, placeholder, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (business_key) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, s.q(query),
		rec.ID,
		string(rec.BusinessKey),
		ledger.DateOnly(rec.Date),
		ledger.RoundCents(rec.AmountDue).StringFixed(2),
		rec.Placeholder,
		s.now(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert business record %s: %w", rec.BusinessKey, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetBusinessRecord retrieves a record by ID
func (s *Storage) GetBusinessRecord(ctx context.Context, id string) (*ledger.BusinessRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, s.q(recordSelect+` WHERE r.id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("business record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindRecordsByKeys returns the records carrying any of keys, ordered by date then id.
func (s *Storage) FindRecordsByKeys(ctx context.Context, keys []ledger.BusinessKey) ([]ledger.BusinessRecord, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = string(k)
	}

	query := recordSelect + `
	WHERE r.business_key IN (` + placeholders(len(keys)) + `)
	ORDER BY r.record_date, r.id`

	return s.queryRecords(ctx, query, args...)
}

// ListRecordsInWindow returns records dated within [from, to], ordered by
// date then id.
func (s *Storage) ListRecordsInWindow(ctx context.Context, from, to time.Time, includePlaceholders bool) ([]ledger.BusinessRecord, error) {
	query := recordSelect + `
	WHERE r.record_date >= ? AND r.record_date <= ?`
	args := []any{ledger.DateOnly(from), ledger.DateOnly(to)}

	if !includePlaceholders {
		query += ` AND r.placeholder = ?`
		args = append(args, false)
	}
	query += ` ORDER BY r.record_date, r.id`

	return s.queryRecords(ctx, query, args...)
}
