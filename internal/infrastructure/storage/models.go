package storage

import "time"

// Run kinds.
const (
	RunKindMatch    = "match"
	RunKindAllocate = "allocate"
)

// Run statuses.
const (
	RunStatusRunning             = "running"
	RunStatusCompleted           = "completed"
	RunStatusCompletedWithErrors = "completed_with_errors"
	RunStatusCancelled           = "cancelled"
)

// Run groups the outcomes of one batch invocation.
type Run struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	DryRun      bool       `json:"dry_run"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Processed   int        `json:"processed"`
	Applied     int        `json:"applied"`
	Allocated   int        `json:"allocated"`
	Skipped     int        `json:"skipped"`
	Errored     int        `json:"errored"`
	Status      string     `json:"status"`
}

// OutcomeRecord is the persisted audit row for one processed transaction.
type OutcomeRecord struct {
	ID             string    `json:"id"`
	RunID          string    `json:"run_id"`
	TransactionID  string    `json:"transaction_id"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	BusinessKey    string    `json:"business_key,omitempty"`
	MatchType      string    `json:"match_type,omitempty"`
	Score          *float64  `json:"score,omitempty"`
	CandidateCount int       `json:"candidate_count"`
	DryRun         bool      `json:"dry_run"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Link is a direct transaction to business record association.
type Link struct {
	TransactionID    string
	BusinessRecordID string
	MatchType        string
	Score            float64
}

// TransactionFilter narrows ListUnmatchedTransactions.
type TransactionFilter struct {
	IDs              []string // empty = all
	Methods          []string // empty = all
	Limit            int      // 0 = no limit
	IncludeAllocated bool     // include transactions that already have allocation rows
}

// Stats contains aggregate reconciliation statistics
type Stats struct {
	Transactions          int `json:"transactions"`
	LinkedTransactions    int `json:"linked_transactions"`
	AllocatedDeposits     int `json:"allocated_deposits"`
	UnmatchedTransactions int `json:"unmatched_transactions"`
	BusinessRecords       int `json:"business_records"`
	Allocations           int `json:"allocations"`
	NeedsReview           int `json:"needs_review"`
	Runs                  int `json:"runs"`
}
