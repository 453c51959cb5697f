package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kalambet/trad/internal/arbiter"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeErrorBody(w, code, map[string]any{
		"message": fmt.Sprintf(format, args...),
		"type":    errType,
	})
}

func httpFieldError(w http.ResponseWriter, field, msg string) {
	writeErrorBody(w, http.StatusBadRequest, map[string]any{
		"message": field + " " + msg,
		"type":    "invalid_request_error",
		"field":   field,
	})
}

func writeErrorBody(w http.ResponseWriter, code int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"error": body})
}

func unauthorized(w http.ResponseWriter, _ *http.Request) {
	httpError(w, http.StatusUnauthorized, "authentication_error", "invalid bearer token")
}

// writeErr maps core errors onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	var ve *arbiter.ValidationError
	switch {
	case errors.As(err, &ve):
		httpFieldError(w, ve.Field, ve.Message)
	case errors.Is(err, arbiter.ErrUnauthorized):
		httpError(w, http.StatusUnauthorized, "authentication_error", "authentication required")
	case errors.Is(err, arbiter.ErrForbidden):
		httpError(w, http.StatusForbidden, "permission_error", "reviewer role required")
	case errors.Is(err, arbiter.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "record not found")
	case errors.Is(err, arbiter.ErrAlreadyReviewed):
		httpError(w, http.StatusConflict, "conflict", "record already reviewed")
	case errors.Is(err, arbiter.ErrInference):
		httpError(w, http.StatusBadGateway, "api_error", "%s", arbiter.ErrInference.Error())
	default:
		slog.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}
