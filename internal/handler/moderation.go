package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/quotefault/internal/apperror"
	"github.com/sakif/quotefault/internal/model"
)

// ModerationHandler serves hide, report and resolve, and the report queue.
type ModerationHandler struct {
	moderation ModerationService
	viewers    Viewers
	logger     *slog.Logger
}

func NewModerationHandler(moderation ModerationService, viewers Viewers, logger *slog.Logger) *ModerationHandler {
	return &ModerationHandler{moderation: moderation, viewers: viewers, logger: logger}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// HandleHide hides a quote.
//
// HTTP: PUT /api/quote/{id}/hide
// REQUEST BODY: {"reason": "at least ten characters"}
func (h *ModerationHandler) HandleHide(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, h.moderation.Hide)
}

// HandleReport files an anonymous report.
//
// HTTP: POST /api/quote/{id}/report
// REQUEST BODY: {"reason": "..."}
func (h *ModerationHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, h.moderation.Report)
}

// HandleResolve closes a quote's open reports, optionally hiding it.
//
// HTTP: PUT /api/quote/{id}/resolve?hide=true
func (h *ModerationHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r, h.viewers)
	if !ok {
		return
	}
	id, err := quoteID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hide := false
	if s := r.URL.Query().Get("hide"); s != "" {
		if hide, err = strconv.ParseBool(s); err != nil {
			writeError(w, r, apperror.ValidationFailed("hide", "hide must be true or false"))
			return
		}
	}

	if err := h.moderation.Resolve(r.Context(), id, v, hide); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListReports returns the open report queue grouped by quote.
//
// HTTP: GET /api/reports
func (h *ModerationHandler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r, h.viewers)
	if !ok {
		return
	}
	reports, err := h.moderation.ListReports(r.Context(), v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *ModerationHandler) withReason(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, v model.Viewer, reason string) error) {
	v, ok := viewer(w, r, h.viewers)
	if !ok {
		return
	}
	id, err := quoteID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reasonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := op(r.Context(), id, v, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
