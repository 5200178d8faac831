package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"powershare/internal/apperror"
	"powershare/internal/middleware"
	"powershare/internal/units"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	middleware.WriteError(w, status, code, message)
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

// writeError maps an error kind to its status. Errors without a kind are
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	message := err.Error()
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	switch apperror.Kind(err) {
	case apperror.ErrUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
		respondError(w, http.StatusUnauthorized, "unauthorized", message)
	case apperror.ErrNotFound:
		respondError(w, http.StatusNotFound, "not_found", message)
	case apperror.ErrInvalidArgument:
		respondError(w, http.StatusBadRequest, "invalid_argument", message)
	case apperror.ErrInsufficientInventory:
		respondError(w, http.StatusBadRequest, "insufficient_inventory", message)
	case apperror.ErrConflict:
		respondError(w, http.StatusConflict, "conflict", message)
	case apperror.ErrForbidden:
		respondError(w, http.StatusForbidden, "forbidden", message)
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return apperror.InvalidArgument("body", "invalid payload")
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		if errors.Is(err, units.ErrFractional) || errors.Is(err, units.ErrInvalidQuantity) {
			return apperror.InvalidArgument("units", err.Error())
		}
		return apperror.InvalidArgument("body", "invalid payload")
	}
	return nil
}
