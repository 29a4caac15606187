package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/charter-reconciler/internal/api/dto"
	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/storage"
)

// TransactionsHandler serves transactions and their allocation rows.
type TransactionsHandler struct {
	*Base
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo storage.Repository) *TransactionsHandler {
	return &TransactionsHandler{
		Base: NewBase(repo),
	}
}

// Get handles GET /api/transactions/{id}.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.repo.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteLookupError(w, err, "transaction")
		return
	}

	response := dto.TransactionResponse{
		ID:                 tx.ID,
		Method:             tx.Method,
		Memo:               tx.Memo,
		ExternalReference:  tx.ExternalReference,
		Account:            tx.Account,
		BusinessRecordID:   tx.BusinessRecordID,
		MatchType:          tx.MatchType,
		MatchScore:         tx.MatchScore,
		LinkedAt:           tx.LinkedAt,
		AllocationRevision: tx.AllocationRevision,
	}
	if tx.Date != nil {
		response.Date = tx.Date.Format("2006-01-02")
	}
	if tx.Amount != nil {
		response.Amount = tx.Amount.StringFixed(2)
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Allocations handles GET /api/transactions/{id}/allocations.
func (h *TransactionsHandler) Allocations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.repo.GetTransaction(r.Context(), id); err != nil {
		h.WriteLookupError(w, err, "transaction")
		return
	}

	rows, err := h.repo.ListAllocations(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toAllocationList(id, rows))
}

func toAllocationList(id string, rows []ledger.Allocation) dto.AllocationListResponse {
	response := dto.AllocationListResponse{
		TransactionID: id,
		Allocations:   make([]dto.AllocationResponse, 0, len(rows)),
		Count:         len(rows),
	}

	total := decimal.Zero
	for _, a := range rows {
		total = total.Add(a.Amount)
		response.Allocations = append(response.Allocations, dto.AllocationResponse{
			ID:                     a.ID,
			TargetBusinessRecordID: a.TargetBusinessRecordID,
			Amount:                 a.Amount.StringFixed(2),
			Method:                 a.Method,
			IsRemainder:            a.IsRemainder,
			NeedsReview:            a.NeedsReview,
			CreatedAt:              a.CreatedAt,
		})
	}
	response.Total = total.StringFixed(2)
	return response
}
