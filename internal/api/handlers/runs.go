package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/charter-reconciler/internal/api/dto"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/storage"
)

const maxRunLimit = 200

// RunsHandler handles run-related HTTP requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns recent runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)
	if limit <= 0 || limit > maxRunLimit {
		limit = maxRunLimit
	}

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a single run.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.repo.GetRun(r.Context(), id)
	if err != nil {
		h.WriteLookupError(w, err, "run")
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunResponse(*run))
}

// Outcomes handles GET /api/runs/{id}/outcomes - returns the per-transaction
// audit trail of a run.
func (h *RunsHandler) Outcomes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.repo.GetRun(r.Context(), id); err != nil {
		h.WriteLookupError(w, err, "run")
		return
	}

	outcomes, err := h.repo.ListOutcomes(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.OutcomeListResponse{
		RunID:    id,
		Outcomes: make([]dto.OutcomeResponse, 0, len(outcomes)),
		Count:    len(outcomes),
	}
	for _, o := range outcomes {
		response.Outcomes = append(response.Outcomes, dto.OutcomeResponse{
			TransactionID:  o.TransactionID,
			Status:         o.Status,
			Reason:         o.Reason,
			BusinessKey:    o.BusinessKey,
			MatchType:      o.MatchType,
			Score:          o.Score,
			CandidateCount: o.CandidateCount,
			DryRun:         o.DryRun,
			Error:          o.Error,
			CreatedAt:      o.CreatedAt,
		})
	}

	h.WriteJSON(w, http.StatusOK, response)
}

func toRunResponse(run storage.Run) dto.RunResponse {
	return dto.RunResponse{
		ID:          run.ID,
		Kind:        run.Kind,
		DryRun:      run.DryRun,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Processed:   run.Processed,
		Applied:     run.Applied,
		Allocated:   run.Allocated,
		Skipped:     run.Skipped,
		Errored:     run.Errored,
		Status:      run.Status,
	}
}
