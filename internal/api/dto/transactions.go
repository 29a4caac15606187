package dto

import "time"

// Money values are rendered as fixed two-decimal strings so no precision is
// lost in JSON.

// TransactionResponse represents a transaction and its link state.
type TransactionResponse struct {
	ID                 string     `json:"id"`
	Date               string     `json:"date,omitempty"`
	Amount             string     `json:"amount,omitempty"`
	Method             string     `json:"method,omitempty"`
	Memo               string     `json:"memo,omitempty"`
	ExternalReference  string     `json:"external_reference,omitempty"`
	Account            string     `json:"account,omitempty"`
	BusinessRecordID   string     `json:"business_record_id,omitempty"`
	MatchType          string     `json:"match_type,omitempty"`
	MatchScore         float64    `json:"match_score,omitempty"`
	LinkedAt           *time.Time `json:"linked_at,omitempty"`
	AllocationRevision int        `json:"allocation_revision"`
}

// AllocationResponse is one allocation row of a source transaction.
type AllocationResponse struct {
	ID                     string    `json:"id"`
	TargetBusinessRecordID string    `json:"target_business_record_id,omitempty"`
	Amount                 string    `json:"amount"`
	Method                 string    `json:"method"`
	IsRemainder            bool      `json:"is_remainder"`
	NeedsReview            bool      `json:"needs_review"`
	CreatedAt              time.Time `json:"created_at"`
}

// AllocationListResponse is returned for a transaction's allocations.
type AllocationListResponse struct {
	TransactionID string               `json:"transaction_id"`
	Allocations   []AllocationResponse `json:"allocations"`
	Total         string               `json:"total"`
	Count         int                  `json:"count"`
}
