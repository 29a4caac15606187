// Package ledger holds the record shapes the reconciliation engine reads and
// writes: transactions, business records (reservations/charters) and the
// allocation rows that spread one deposit over several records.
//
// Internal ids are only used for foreign-key linkage. Business logic compares
// business records by their BusinessKey.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// BusinessKey is the human-facing identifier of a business record, e.g. a
// reservation number. Leading zeros are significant.
type BusinessKey string

func (k BusinessKey) String() string { return string(k) }

// Transaction is a financial movement awaiting (or holding) a link to a
// business record. Date and Amount are nil when the source feed did not
// provide them.
type Transaction struct {
	ID                 string
	Date               *time.Time
	Amount             *decimal.Decimal
	Method             string
	Memo               string
	ExternalReference  string
	Account            string
	ContentHash        string
	BusinessRecordID   string // empty when unlinked
	MatchType          string
	MatchScore         float64
	LinkedAt           *time.Time
	AllocationRevision int
}

// IsLinked reports whether the transaction holds a direct business-record link.
func (t Transaction) IsLinked() bool {
	return t.BusinessRecordID != ""
}

// IsAllocated reports whether allocation rows have been written for the transaction.
func (t Transaction) IsAllocated() bool {
	return t.AllocationRevision > 0
}

// HasRequiredFields reports whether the transaction carries a date and an amount.
func (t Transaction) HasRequiredFields() bool {
	return t.Date != nil && t.Amount != nil
}

// BusinessRecord is an obligation (reservation, charter, invoice) with an
// amount due. OpenAmount and LinkedTransactionID are derived by storage on
// read.
type BusinessRecord struct {
	ID                  string
	BusinessKey         BusinessKey
	Date                time.Time
	AmountDue           decimal.Decimal
	Placeholder         bool
	OpenAmount          decimal.Decimal
	LinkedTransactionID string // empty when no transaction holds the record
}

// Allocation methods.
const (
	MethodProportional   = "proportional"
	MethodMultiReference = "multi_reference"
)

// Allocation assigns part of a source transaction to a business record.
// TargetBusinessRecordID is empty for remainder rows.
type Allocation struct {
	ID                     string
	SourceTransactionID    string
	TargetBusinessRecordID string
	Amount                 decimal.Decimal
	Method                 string
	IsRemainder            bool
	NeedsReview            bool
	CreatedAt              time.Time
}
