package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	SchemaVersion int64  `json:"schema_version,omitempty"`
}

// NewHealthResponse creates a healthy response stamped with the current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// RunResponse represents a match or allocation run.
type RunResponse struct {
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

// RunListResponse is returned when listing runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// OutcomeResponse is the audit entry for one processed transaction.
type OutcomeResponse struct {
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

// OutcomeListResponse is returned when listing the outcomes of a run.
type OutcomeListResponse struct {
	RunID    string            `json:"run_id"`
	Outcomes []OutcomeResponse `json:"outcomes"`
	Count    int               `json:"count"`
}

// StatsResponse contains aggregate reconciliation counts.
type StatsResponse struct {
	Transactions          int `json:"transactions"`
	LinkedTransactions    int `json:"linked_transactions"`
	AllocatedDeposits     int `json:"allocated_deposits"`
	UnmatchedTransactions int `json:"unmatched_transactions"`
	BusinessRecords       int `json:"business_records"`
	Allocations           int `json:"allocations"`
	NeedsReview           int `json:"needs_review"`
	Runs                  int `json:"runs"`
}
