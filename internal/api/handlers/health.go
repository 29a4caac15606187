package handlers

import (
	"context"
	"net/http"

	"github.com/eshaffer321/charter-reconciler/internal/api/dto"
)

// SchemaVersioner reports the applied migration version.
type SchemaVersioner interface {
	SchemaVersion(ctx context.Context) (int64, error)
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	*Base
	schema SchemaVersioner
}

// NewHealthHandler creates a new health handler. schema may be nil.
func NewHealthHandler(schema SchemaVersioner) *HealthHandler {
	return &HealthHandler{Base: NewBase(nil), schema: schema}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := dto.NewHealthResponse()

	if h.schema != nil {
		version, err := h.schema.SchemaVersion(r.Context())
		if err != nil {
			response.Status = "unavailable"
			h.WriteJSON(w, http.StatusServiceUnavailable, response)
			return
		}
		response.SchemaVersion = version
	}

	h.WriteJSON(w, http.StatusOK, response)
}
