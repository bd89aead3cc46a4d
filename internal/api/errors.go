package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"icuts/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var unknownConcept *domain.UnknownConceptError
	var unknownCode *domain.UnknownCodeError
	var adapterMissing *domain.AdapterNotFoundError
	var adapterQuery *domain.AdapterQueryError
	var malformed *domain.MalformedCatalogError

	switch {
	case errors.As(err, &unknownConcept):
		return http.StatusNotFound
	case errors.As(err, &adapterMissing):
		return http.StatusBadRequest
	case errors.As(err, &malformed):
		return http.StatusUnprocessableEntity
	case errors.As(err, &unknownCode):
		return http.StatusBadGateway
	case errors.As(err, &adapterQuery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"code":    status,
		"message": err.Error(),
	})
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, httpStatusFromDomainError(err), err)
}
