package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// TriggerHandler enqueues on-demand pipeline runs.
type TriggerHandler struct {
	logger    *slog.Logger
	triggerCh chan<- struct{} // when non-nil, a send enqueues one run
}

func NewTriggerHandler(logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{logger: logger}
}

// WithTriggerChannel sets the channel the run loop receives from.
func (h *TriggerHandler) WithTriggerChannel(ch chan<- struct{}) *TriggerHandler {
	h.triggerCh = ch
	return h
}

// TriggerRun enqueues one pipeline run with a non-blocking send, so repeated
// requests while a trigger is pending collapse into one.
// POST /api/runs/trigger
func (h *TriggerHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "handler: run trigger requested")
	if h.triggerCh != nil {
		select {
		case h.triggerCh <- struct{}{}:
		default:
			// a trigger is already pending
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
