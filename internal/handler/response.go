package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bankcards/card-service/internal/apperr"
)

// SuccessResponse is the envelope for successful mutations.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the envelope for failures.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			h.log.WithError(err).Error("Failed to encode response")
		}
	}
}

// writeErr maps domain errors to their HTTP status; everything else is an
// opaque 500 so infrastructure details never leak to callers.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		h.writeJSON(w, domainErr.Status, ErrorResponse{Code: domainErr.Code, Message: domainErr.Message})
		return
	}
	h.log.WithError(err).Error("Internal error")
	h.writeJSON(w, http.StatusInternalServerError,
		ErrorResponse{Code: "INTERNAL_ERROR", Message: "internal server error"})
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: msg})
}
