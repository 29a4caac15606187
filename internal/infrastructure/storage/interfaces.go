package storage

import (
	"context"
	"time"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	TransactionRepository
	BusinessRecordRepository
	AllocationRepository
	RunRepository
	Close() error
}

// TransactionRepository handles transactions and their direct links
type TransactionRepository interface {
	// InsertTransaction stores a new transaction. A duplicate content hash is
	// skipped and reported as inserted=false.
	InsertTransaction(ctx context.Context, tx *ledger.Transaction) (inserted bool, err error)

	// GetTransaction retrieves a transaction by ID
	GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error)

	// ListUnmatchedTransactions returns unlinked transactions ordered by date then id
	ListUnmatchedTransactions(ctx context.Context, filter TransactionFilter) ([]*ledger.Transaction, error)

	// ApplyLink links a transaction to a business record, enforcing exclusivity
	ApplyLink(ctx context.Context, link Link) error

	// ClearLink removes the link between a transaction and the given record
	ClearLink(ctx context.Context, transactionID, businessRecordID string) error
}

// BusinessRecordRepository handles business record reads. Open amounts are
// computed on every read.
type BusinessRecordRepository interface {
	// InsertBusinessRecord stores a record. A duplicate business key is
	// skipped and reported as inserted=false.
	InsertBusinessRecord(ctx context.Context, rec *ledger.BusinessRecord) (inserted bool, err error)

	// GetBusinessRecord retrieves a record by ID
	GetBusinessRecord(ctx context.Context, id string) (*ledger.BusinessRecord, error)

	// FindRecordsByKeys returns the records carrying any of the given keys
	FindRecordsByKeys(ctx context.Context, keys []ledger.BusinessKey) ([]ledger.BusinessRecord, error)

	// ListRecordsInWindow returns records dated within [from, to]
	ListRecordsInWindow(ctx context.Context, from, to time.Time, includePlaceholders bool) ([]ledger.BusinessRecord, error)
}

// AllocationRepository handles allocation rows
type AllocationRepository interface {
	// SaveAllocations writes the allocation rows of a source transaction as a
	// compare-and-set on its allocation revision. Without recompute an
	// already allocated source fails with ErrAlreadyAllocated.
	SaveAllocations(ctx context.Context, sourceTransactionID string, rows []ledger.Allocation, recompute bool) error

	// ListAllocations returns the rows of a source transaction
	ListAllocations(ctx context.Context, sourceTransactionID string) ([]ledger.Allocation, error)
}

// RunRepository handles run and outcome audit records
type RunRepository interface {
	// StartRun records the start of a run
	StartRun(ctx context.Context, kind string, dryRun bool) (*Run, error)

	// CompleteRun records the counters and final status of a run
	CompleteRun(ctx context.Context, run *Run) error

	// SaveOutcome appends an outcome to a run
	SaveOutcome(ctx context.Context, outcome *OutcomeRecord) error

	// ListRuns returns recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// GetRun retrieves a run by ID
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListOutcomes returns the outcomes of a run in insertion order
	ListOutcomes(ctx context.Context, runID string) ([]OutcomeRecord, error)

	// GetStats returns aggregate statistics
	GetStats(ctx context.Context) (*Stats, error)
}
