package handler

import (
	"log/slog"
	"net/http"

	"github.com/edgescout/edgescout/internal/domain"
)

// OpportunityHandler serves scored opportunity endpoints.
type OpportunityHandler struct {
	opps   domain.OpportunityStore
	logger *slog.Logger
}

func NewOpportunityHandler(opps domain.OpportunityStore, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{opps: opps, logger: logger}
}

// ListRecent returns the most recently scored opportunities across runs.
// GET /api/opportunities?limit=50
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 200)

	opps, err := h.opps.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": opps})
}

// ListByRun returns the opportunities of one run in rank order.
// GET /api/runs/{id}/opportunities
func (h *OpportunityHandler) ListByRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	opps, err := h.opps.ListByRun(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list run opportunities failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "opportunities": opps})
}
