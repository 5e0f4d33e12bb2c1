package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/stashbox"
)

// Envelope is the JSON body of every response.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, message string) {
	if err := WriteJSON(w, code, Envelope{Status: code, Message: message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

// HandleError writes appropriate error response based on error type
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stashbox.ErrUnauthorized):
		slog.Debug("request rejected", "error", err)
		WriteError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, stashbox.ErrTooLarge):
		slog.Debug("request rejected", "error", err)
		WriteError(w, http.StatusRequestEntityTooLarge, "upload too large")
	case errors.Is(err, stashbox.ErrInvalidInput):
		slog.Debug("request rejected", "error", err)
		WriteError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, stashbox.ErrNotFound):
		slog.Debug("request rejected", "error", err)
		WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, context.Canceled):
		slog.Warn("request canceled", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
