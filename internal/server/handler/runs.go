package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/edgescout/edgescout/internal/domain"
)

// ReportRenderer renders a run record as a markdown report.
type ReportRenderer interface {
	Render(run domain.RunRecord) string
}

// ReportArchive fetches archived reports for runs that have aged out of the
// primary store.
type ReportArchive interface {
	Report(ctx context.Context, runID string) (io.ReadCloser, error)
}

// RunHandler serves run history endpoints.
type RunHandler struct {
	runs     domain.RunStore
	renderer ReportRenderer
	archive  ReportArchive // optional; when nil, archived reports 404
	logger   *slog.Logger
}

func NewRunHandler(runs domain.RunStore, renderer ReportRenderer, logger *slog.Logger) *RunHandler {
	return &RunHandler{runs: runs, renderer: renderer, logger: logger}
}

// WithArchive enables report fallback to cold storage.
func (h *RunHandler) WithArchive(archive ReportArchive) *RunHandler {
	h.archive = archive
	return h
}

// runSummary is the list-view projection of a run record.
type runSummary struct {
	ID            string              `json:"id"`
	StartedAt     time.Time           `json:"started_at"`
	EndedAt       time.Time           `json:"ended_at"`
	Termination   string              `json:"termination"`
	TotalCost     float64             `json:"total_cost_usd"`
	Funnel        domain.FunnelCounts `json:"funnel"`
	Opportunities int                 `json:"opportunities"`
}

// ListRuns returns the most recent runs, newest first.
// GET /api/runs?limit=20
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 100)

	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list runs failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	summaries := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, runSummary{
			ID:            run.ID,
			StartedAt:     run.StartedAt,
			EndedAt:       run.EndedAt,
			Termination:   string(run.Termination),
			TotalCost:     run.TotalCost,
			Funnel:        run.Funnel,
			Opportunities: run.Funnel.Scored,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": summaries})
}

// GetRun returns one full run record.
// GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	run, err := h.runs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get run failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetReport returns the markdown report for a run. Runs still in the primary
// store are rendered on the fly; otherwise the archived report is served.
// GET /api/runs/{id}/report
func (h *RunHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	run, err := h.runs.Get(r.Context(), id)
	if err == nil {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, h.renderer.Render(run))
		return
	}
	if !errors.Is(err, domain.ErrNotFound) {
		h.logger.ErrorContext(r.Context(), "handler: get run for report failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	if h.archive == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	body, err := h.archive.Report(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: fetch archived report failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch archived report")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
}
