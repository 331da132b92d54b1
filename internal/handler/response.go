package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError so the API has one
// error shape:
//
//	{"error": "conflict", "message": "Quote does not exist"}
//
// The "error" field is machine-readable, "message" is the text a member
// sees. Internal failures never leak their details: they are logged here
// and answered with a generic message.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/quotefault/internal/apperror"
	"github.com/sakif/quotefault/internal/logging"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON sends data as JSON with status. Headers must be set before the
// status line is written.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a service error to a status code and the standard body.
//
// ERROR MAPPING:
//
//	ErrValidation  → 400
//	ErrForbidden   → 403
//	ErrNotFound    → 404
//	ErrConflict    → 409
//	ErrUnavailable → 502
//	anything else  → 500
//
// errors.As walks the wrap chain, so a service may add context with
// fmt.Errorf("...: %w", appErr) without changing the response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, kind := http.StatusInternalServerError, "internal_error"
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status, kind = http.StatusBadRequest, "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status, kind = http.StatusNotFound, "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status, kind = http.StatusForbidden, "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status, kind = http.StatusConflict, "conflict"
		case errors.Is(err, apperror.ErrUnavailable):
			status, kind = http.StatusBadGateway, "unavailable"
			logging.FromContext(r.Context()).Error("upstream unavailable",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
		}
		writeJSON(w, status, ErrorResponse{Error: kind, Message: appErr.Message})
		return
	}

	logging.FromContext(r.Context()).Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}
