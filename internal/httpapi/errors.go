package httpapi

import (
	"errors"
	"net/http"

	"vaultgraph.org/internal/authz"
	"vaultgraph.org/internal/schema"
)

func respondError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error": msg,
	})
}

// respondAuthzError maps the error taxonomy onto HTTP status codes. The body
// carries the outer category only; wrapped detail stays in the server log.
func respondAuthzError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authz.ErrExpired):
		respondError(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, authz.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, authz.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, authz.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, authz.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	case errors.Is(err, authz.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, schema.ErrInvalidSchema):
		respondError(w, http.StatusInternalServerError, "schema configuration error")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
