// Package httpapi exposes the control surface and dashboard queries over HTTP.
package httpapi

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/obs"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Details: details})
}

// writeJSON writes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeStoreError maps domain and store failures onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, "not_found", "product not found")
		return
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		WriteJSONError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	default:
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
	obs.Logger.Error("request_failed",
		"path", r.URL.Path,
		"error", err.Error(),
		"request_id", RequestIDFromContext(r.Context()),
	)
}
