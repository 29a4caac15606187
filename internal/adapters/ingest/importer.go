package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/eshaffer321/charter-reconciler/internal/domain/hasher"
	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/google/uuid"
)

// Store is the subset of the repository the importer writes to.
type Store interface {
	InsertTransaction(ctx context.Context, tx *ledger.Transaction) (bool, error)
	InsertBusinessRecord(ctx context.Context, rec *ledger.BusinessRecord) (bool, error)
}

// Summary counts what an import did with each line.
type Summary struct {
	Rows       int        `json:"rows"`
	Inserted   int        `json:"inserted"`
	Duplicates int        `json:"duplicates"`
	Invalid    []RowError `json:"-"`
}

// Importer writes parsed rows to the store. Re-importing the same file is
// safe: transactions are deduplicated by content hash and records by
// business key.
type Importer struct {
	store  Store
	logger *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(store Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, logger: logger}
}

// ImportTransactions reads a transaction file and inserts every new line.
// Lines without the fields the content hash needs are reported as invalid.
func (i *Importer) ImportTransactions(ctx context.Context, r io.Reader) (*Summary, error) {
	rows, invalid, err := ReadTransactions(r)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Rows: len(rows) + len(invalid), Invalid: invalid}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		tx, err := toTransaction(row)
		if err != nil {
			summary.Invalid = append(summary.Invalid, RowError{Line: row.Line, Err: err})
			continue
		}

		inserted, err := i.store.InsertTransaction(ctx, tx)
		if err != nil {
			return summary, fmt.Errorf("line %d: %w", row.Line, err)
		}
		if inserted {
			summary.Inserted++
		} else {
			summary.Duplicates++
		}
	}

	i.logSummary("transactions", summary)
	return summary, nil
}

// ImportRecords reads a business record file and inserts every new record.
func (i *Importer) ImportRecords(ctx context.Context, r io.Reader) (*Summary, error) {
	rows, invalid, err := ReadRecords(r)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Rows: len(rows) + len(invalid), Invalid: invalid}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		inserted, err := i.store.InsertBusinessRecord(ctx, &ledger.BusinessRecord{
			ID:          uuid.NewString(),
			BusinessKey: row.BusinessKey,
			Date:        row.Date,
			AmountDue:   ledger.RoundCents(row.AmountDue),
			Placeholder: row.Placeholder,
		})
		if err != nil {
			return summary, fmt.Errorf("line %d: %w", row.Line, err)
		}
		if inserted {
			summary.Inserted++
		} else {
			summary.Duplicates++
		}
	}

	i.logSummary("records", summary)
	return summary, nil
}

func toTransaction(row TransactionRow) (*ledger.Transaction, error) {
	fields := hasher.Fields{
		Description: row.Memo,
		Account:     row.Account,
	}
	if row.Date != nil {
		fields.Date = *row.Date
	}
	if row.Amount != nil {
		fields.Debit, fields.Credit = hasher.SplitAmount(*row.Amount)
	}

	hash, err := hasher.Fingerprint(fields)
	if err != nil {
		return nil, err
	}

	tx := &ledger.Transaction{
		ID:                uuid.NewString(),
		Date:              row.Date,
		Method:            row.Method,
		Memo:              row.Memo,
		ExternalReference: row.ExternalReference,
		Account:           row.Account,
		ContentHash:       hash,
	}
	if row.Amount != nil {
		amount := ledger.RoundCents(*row.Amount)
		tx.Amount = &amount
	}
	return tx, nil
}

func (i *Importer) logSummary(kind string, s *Summary) {
	for _, e := range s.Invalid {
		i.logger.Warn("Skipped invalid line", "kind", kind, "line", e.Line, "error", e.Err)
	}
	i.logger.Info("Import complete",
		"kind", kind,
		"rows", s.Rows,
		"inserted", s.Inserted,
		"duplicates", s.Duplicates,
		"invalid", len(s.Invalid))
}
